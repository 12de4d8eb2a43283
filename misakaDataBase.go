package main

import (
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"MisakaKV/customDataStructure/skipList"
	"MisakaKV/logger"
	"MisakaKV/storage"

	"github.com/tidwall/match"
	"github.com/tidwall/redcon"
)

// 以下为可选配置项的默认值
const (
	DefaultServerAddr         = ":23456"
	DefaultLoggerPath         = "MisakaKVLog"
	DefaultDumpFilePath       = "store/dumpFile"
	DefaultDelimiter          = ":"
	DefaultMaxLevel           = 18
	DefaultTrackerCapacity    = 0 // 0 表示不限制带 TTL 的键值对数量
	DefaultCompactionInterval = 5 * time.Second
)

// Options 数据库的配置 LoggerPath 为空时只打印不写 log 文件 DumpFilePath 为空时不读写快照
type Options struct {
	ServerAddr         string
	LoggerPath         string
	DumpFilePath       string
	Delimiter          string
	MaxLevel           int
	TrackerCapacity    int
	CompactionInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		ServerAddr:         DefaultServerAddr,
		LoggerPath:         DefaultLoggerPath,
		DumpFilePath:       DefaultDumpFilePath,
		Delimiter:          DefaultDelimiter,
		MaxLevel:           DefaultMaxLevel,
		TrackerCapacity:    DefaultTrackerCapacity,
		CompactionInterval: DefaultCompactionInterval,
	}
}

// Check 检查配置是否合法
func (o Options) Check() error {
	if o.ServerAddr == "" || o.Delimiter == "" || o.CompactionInterval <= 0 ||
		o.MaxLevel < 1 || o.MaxLevel > skipList.IndexMaxHeight || o.TrackerCapacity < 0 {
		return logger.ParameterIsNotAllowed
	}
	return nil
}

type MisakaKV struct {
	server    *redcon.Server
	isServing atomic.Bool

	skipList  *skipList.SkipList[string, string]
	compactor *skipList.Compactor
	dumpFile  *storage.DumpFile[string, string]

	logger  *logger.Logger
	options Options
}

func Init(options Options) (*MisakaKV, error) {
	e := options.Check()
	if e != nil {
		return nil, e
	}
	database := &MisakaKV{
		options: options,
	}

	// 初始化logger
	if options.LoggerPath != "" {
		database.logger, e = logger.NewLogger(options.LoggerPath)
		if e != nil {
			return nil, e
		}
		logger.GenerateInfoLog("Logger is Ready!")
	}

	database.skipList, e = skipList.NewSkipList[string, string](options.MaxLevel, options.TrackerCapacity)
	if e != nil {
		database.stopLogger()
		return nil, e
	}

	// 读取快照
	if options.DumpFilePath != "" {
		database.dumpFile, e = storage.NewDumpFile[string, string](options.DumpFilePath, options.Delimiter, storage.StringParser, storage.StringParser)
		if e != nil {
			database.stopLogger()
			return nil, e
		}
		_, e = database.dumpFile.Load(database.skipList)
		if e != nil && !errors.Is(e, logger.FileIsNotExist) {
			database.stopLogger()
			return nil, e
		}
	}
	logger.GenerateInfoLog("Skip List is Ready! Size: " + strconv.Itoa(database.skipList.Size()))

	// 开始定时压缩
	database.compactor, e = skipList.NewCompactor(database.skipList, options.CompactionInterval)
	if e != nil {
		database.stopLogger()
		return nil, e
	}
	database.compactor.Start()

	// 初始化服务器
	database.ServerInit()
	logger.GenerateInfoLog("Server is Ready!")

	return database, nil
}

// Destroy 关闭服务器 停止压缩 保存快照 最后关闭 logger 中途出错也会继续关闭剩下的部分 返回第一个错误
func (db *MisakaKV) Destroy() error {
	var firstError, e error

	// 关闭服务器 没有开始监听的服务器不需要关闭
	if db.isServing.Load() {
		e = db.server.Close()
		if e != nil {
			logger.GenerateErrorLog(false, false, e.Error())
			firstError = e
		}
	}

	// 压缩协程必须在跳表被清空之前停下来
	db.compactor.Stop()

	if db.dumpFile != nil {
		_, e = db.dumpFile.Dump(db.skipList)
		if e != nil && firstError == nil {
			firstError = e
		}
	}
	db.skipList.Clear()

	// 关闭logger
	db.stopLogger()

	return firstError
}

func (db *MisakaKV) stopLogger() {
	if db.logger != nil {
		db.logger.StopLogger()
	}
}

func (db *MisakaKV) ServerInit() {
	// redcon是多线程的 跳表自己带锁 这里不需要再加锁

	// 创建一个Server需要三个回调函数：
	// 1 通过连接接收请求时调用的函数
	// 2 接受连接时调用的函数
	// 3 断开连接时调用的函数
	db.server = redcon.NewServer(db.options.ServerAddr,
		db.handleCommand,
		func(conn redcon.Conn) bool {
			logger.GenerateInfoLog("DataBase Connection Accept: " + conn.RemoteAddr())
			return true
		},
		func(conn redcon.Conn, err error) {
			logger.GenerateInfoLog("DataBase Connection Closed: " + conn.RemoteAddr())
		},
	)
}

func (db *MisakaKV) StartServe() error {
	logger.GenerateInfoLog("Server start Listen And Serve!")
	db.isServing.Store(true)
	return db.server.ListenAndServe()
}

// ListenServeAndSignal 和 StartServe 一样阻塞监听 开始监听或者监听失败时向 signal 发送结果
func (db *MisakaKV) ListenServeAndSignal(signal chan error) error {
	logger.GenerateInfoLog("Server start Listen And Serve!")
	db.isServing.Store(true)
	return db.server.ListenServeAndSignal(signal)
}

func wrongArgs(conn redcon.Conn, cmd redcon.Command) {
	conn.WriteError("ERR wrong number of arguments for '" + string(cmd.Args[0]) + "' command")
}

// handleCommand 解析并执行一条命令
func (db *MisakaKV) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	var e error
	command := strings.ToLower(string(cmd.Args[0]))
	switch command {
	default:
		// 命令不能识别
		conn.WriteError("ERR unknown command '" + string(cmd.Args[0]) + "'")
	case "ping":
		conn.WriteString("PONG")
	case "quit":
		conn.WriteString("OK")
		e = conn.Close()
		if e != nil {
			logger.GenerateErrorLog(false, false, e.Error())
		}

	case "set":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: set")
		if len(cmd.Args) == 3 {
			// set key value
			e = db.skipList.Insert(string(cmd.Args[1]), string(cmd.Args[2]))
		} else if len(cmd.Args) == 5 && strings.ToLower(string(cmd.Args[3])) == "ex" {
			// set key value ex seconds
			seconds, parseError := strconv.Atoi(string(cmd.Args[4]))
			if parseError != nil || seconds <= 0 {
				conn.WriteError("ERR invalid expire time in '" + command + "' command")
				return
			}
			e = db.skipList.InsertWithTTL(string(cmd.Args[1]), string(cmd.Args[2]), time.Duration(seconds)*time.Second)
		} else {
			wrongArgs(conn, cmd)
			return
		}
		if e != nil {
			conn.WriteError(e.Error())
			return
		}
		conn.WriteString("OK")
	case "edit":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: edit")
		if len(cmd.Args) != 3 {
			wrongArgs(conn, cmd)
			return
		}
		// edit key value
		e = db.skipList.Edit(string(cmd.Args[1]), string(cmd.Args[2]))
		if e != nil {
			conn.WriteError(e.Error())
			return
		}
		conn.WriteString("OK")
	case "get":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: get")
		if len(cmd.Args) != 2 {
			wrongArgs(conn, cmd)
			return
		}
		var result string
		result, e = db.skipList.Get(string(cmd.Args[1]))
		if errors.Is(e, logger.KeyIsNotExisted) {
			conn.WriteNull()
			return
		}
		conn.WriteBulkString(result)
	case "exists":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: exists")
		if len(cmd.Args) < 2 {
			wrongArgs(conn, cmd)
			return
		}
		count := 0
		for _, key := range cmd.Args[1:] {
			if db.skipList.Search(string(key)) {
				count += 1
			}
		}
		conn.WriteInt(count)
	case "del":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: del")
		if len(cmd.Args) < 2 {
			wrongArgs(conn, cmd)
			return
		}
		count := 0
		for _, key := range cmd.Args[1:] {
			if db.skipList.Delete(string(key)) {
				count += 1
			}
		}
		conn.WriteInt(count)
	case "dbsize":
		if len(cmd.Args) != 1 {
			wrongArgs(conn, cmd)
			return
		}
		conn.WriteInt(db.skipList.Size())
	case "keys":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: keys")
		if len(cmd.Args) != 2 {
			wrongArgs(conn, cmd)
			return
		}
		pattern := string(cmd.Args[1])
		var keys []string
		db.skipList.ForEach(func(key string, value string) bool {
			if match.Match(key, pattern) {
				keys = append(keys, key)
			}
			return true
		})
		conn.WriteArray(len(keys))
		for _, key := range keys {
			conn.WriteBulkString(key)
		}

	case "compact":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: compact")
		conn.WriteInt(db.skipList.Compact())
	case "save":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: save")
		if db.dumpFile == nil {
			conn.WriteError("ERR dump file is not configured")
			return
		}
		_, e = db.dumpFile.Dump(db.skipList)
		if e != nil {
			conn.WriteError(e.Error())
			return
		}
		conn.WriteString("OK")
	case "flushall":
		logger.GenerateInfoLog(conn.RemoteAddr() + " Query: flushall")
		db.skipList.Clear()
		conn.WriteString("OK")
	}
}
