package storage

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"MisakaKV/file"
	"MisakaKV/logger"
	"MisakaKV/util"
)

/*
跳表的文本快照 每一行为一个键值对 格式为 key<分隔符>value

key 中不能出现分隔符 value 中可以 读取时按第一个分隔符拆分
TTL 不会被保存 重新读取的键值对都不会过期
*/

// Enumerable 可以按 key 升序遍历所有键值对的结构
type Enumerable[K cmp.Ordered, V any] interface {
	ForEach(callback func(key K, value V) bool)
}

// Inserter 可以插入键值对的结构 key 已经存在时应返回 logger.KeyIsExisted
type Inserter[K cmp.Ordered, V any] interface {
	Insert(key K, value V) error
}

// Parser 将快照中的字符串还原为 key 或者 value
type Parser[T any] func(s string) (T, error)

// StringParser 原样返回字符串
func StringParser(s string) (string, error) {
	return s, nil
}

// IntParser 将字符串解析为 int
func IntParser(s string) (int, error) {
	return strconv.Atoi(s)
}

// DumpFile 跳表快照文件
type DumpFile[K cmp.Ordered, V any] struct {
	filePath   string
	delimiter  string
	parseKey   Parser[K]
	parseValue Parser[V]

	mutex sync.Mutex // 同一时间只允许一个 Dump 或 Load
}

// NewDumpFile 给定快照文件路径 分隔符和 key value 的解析函数 新建一个 DumpFile
func NewDumpFile[K cmp.Ordered, V any](filePath string, delimiter string, parseKey Parser[K], parseValue Parser[V]) (*DumpFile[K, V], error) {
	if delimiter == "" || strings.ContainsAny(delimiter, "\r\n") {
		logger.GenerateErrorLog(false, false, logger.DelimiterIsIllegal.Error(), delimiter)
		return nil, logger.DelimiterIsIllegal
	}
	if filePath == "" || parseKey == nil || parseValue == nil {
		return nil, logger.ParameterIsNotAllowed
	}
	return &DumpFile[K, V]{
		filePath:   filePath,
		delimiter:  delimiter,
		parseKey:   parseKey,
		parseValue: parseValue,
	}, nil
}

// Dump 将 src 中所有的键值对按 key 升序写入快照文件 返回写入的键值对数量
//
// 先写临时文件再改名 写入失败时旧的快照不受影响
func (df *DumpFile[K, V]) Dump(src Enumerable[K, V]) (int, error) {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	var (
		buffer bytes.Buffer
		count  int
		e      error
	)
	src.ForEach(func(key K, value V) bool {
		var line string
		line, e = util.EncodeRecord(fmt.Sprint(key), fmt.Sprint(value), df.delimiter)
		if e != nil {
			e = fmt.Errorf("dump key %v: %w", key, e)
			return false
		}
		buffer.WriteString(line)
		buffer.WriteByte('\n')
		count += 1
		return true
	})
	if e != nil {
		return 0, e
	}

	tempPath := df.filePath + ".tmp"
	f, e := file.NewFileIO(tempPath, true)
	if e != nil {
		return 0, e
	}
	e = f.Write(buffer.Bytes(), 0)
	if e == nil {
		e = f.Sync()
	}
	if e != nil {
		_ = f.Delete()
		return 0, e
	}
	e = f.Close()
	if e != nil {
		return 0, e
	}
	e = os.Rename(tempPath, df.filePath)
	if e != nil {
		logger.GenerateErrorLog(false, false, e.Error(), tempPath, df.filePath)
		return 0, e
	}
	logger.GenerateInfoLog("Dump " + strconv.Itoa(count) + " Records into " + df.filePath)
	return count, nil
}

// Load 读取快照文件 将其中的键值对逐个插入 dst 返回插入成功的键值对数量
//
// 格式不对的行和已经存在的 key 会被跳过
func (df *DumpFile[K, V]) Load(dst Inserter[K, V]) (int, error) {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	if _, e := os.Stat(df.filePath); e != nil {
		return 0, logger.FileIsNotExist
	}
	f, e := file.NewFileIO(df.filePath, false)
	if e != nil {
		return 0, e
	}
	defer func() {
		_ = f.Close()
	}()
	length, e := f.Length()
	if e != nil {
		return 0, e
	}
	content := make([]byte, length)
	if length > 0 {
		e = f.Read(content, 0)
		if e != nil {
			return 0, e
		}
	}

	count, skipped := 0, 0
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		keyString, valueString, e := util.DecodeRecord(line, df.delimiter)
		if e != nil {
			skipped += 1
			continue
		}
		key, e := df.parseKey(keyString)
		if e != nil {
			logger.GenerateErrorLog(false, false, logger.RecordIsIllegal.Error(), line, e.Error())
			skipped += 1
			continue
		}
		value, e := df.parseValue(valueString)
		if e != nil {
			logger.GenerateErrorLog(false, false, logger.RecordIsIllegal.Error(), line, e.Error())
			skipped += 1
			continue
		}
		e = dst.Insert(key, value)
		if errors.Is(e, logger.KeyIsExisted) {
			logger.GenerateErrorLog(false, false, logger.KeyIsExisted.Error(), keyString)
			skipped += 1
			continue
		} else if e != nil {
			return count, e
		}
		count += 1
	}
	logger.GenerateInfoLog("Load " + strconv.Itoa(count) + " Records from " + df.filePath + ", Skipped: " + strconv.Itoa(skipped))
	return count, nil
}

// FilePath 返回快照文件路径
func (df *DumpFile[K, V]) FilePath() string {
	return df.filePath
}
