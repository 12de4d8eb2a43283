package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const logChannelSize = 128

type LogLevel string

const (
	Error LogLevel = "E"
	Panic LogLevel = "P"
	Info  LogLevel = "I"
)

// activeLogger 当前正在监听的 Logger 如果为空 log 信息直接打印到标准输出
var activeLogger atomic.Pointer[Logger]

// LogInfo 传递Log信息的结构体
type LogInfo struct {
	level      LogLevel
	timeString string
	message    string
}

func GenerateInfoLog(message string) {
	log := LogInfo{
		level:      Info,
		timeString: time.Now().Format("2006-01-02 15:04:05"),
	}
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		log.message = "Can not Get Caller Function, Message: " + message
	} else {
		log.message = runtime.FuncForPC(pc).Name() + " :" + message
	}
	dispatch(log)
}

func GenerateErrorLog(isPanic bool, needStackTrace bool, message string, keyParams ...string) {
	log := LogInfo{
		timeString: time.Now().Format("2006-01-02 15:04:05"),
	}
	if isPanic {
		log.level = Panic
	} else {
		log.level = Error
	}
	param := strings.Join(keyParams, " ")
	if needStackTrace { // 需要全部堆栈信息
		log.message = "Message: " + message + ", parameters: " + param + "\n"
		log.message += "Stack Trace: \n"

		pcs := make([]uintptr, 100)
		n := runtime.Callers(1, pcs)
		pcs = pcs[:n]
		frames := runtime.CallersFrames(pcs)

		for frame, more := frames.Next(); more; frame, more = frames.Next() {
			log.message += frame.File + ": " + strconv.Itoa(frame.Line) + ", Function: " + frame.Function + "\n"
		}
	} else { // 不需要
		pc, _, _, ok := runtime.Caller(1)
		if !ok {
			log.message = "Can not Get Caller Function, Message: " + message + ", parameters: " + param
		} else {
			log.message = runtime.FuncForPC(pc).Name() + " :" + message + ", parameters: " + param
		}
	}

	dispatch(log)
}

// dispatch 把 log 交给正在运行的 Logger 没有 Logger 或者 Logger 已经停止时直接打印
func dispatch(log LogInfo) {
	logger := activeLogger.Load()
	if logger == nil {
		fmt.Print(log.String())
		return
	}
	logger.stateMutex.RLock()
	defer logger.stateMutex.RUnlock()
	if logger.isStop {
		fmt.Print(log.String())
		return
	}
	logger.logInputChannel <- log
}

func (li *LogInfo) toByteArray() []byte {
	return []byte(li.String())
}

func (li *LogInfo) String() string {
	return fmt.Sprintf("%s %s: %s \n", li.level, li.timeString, li.message)
}

// Logger 记录log信息的结构体
type Logger struct {
	loggerFile      *os.File
	logInputChannel chan LogInfo

	stateMutex sync.RWMutex // 保护 isStop 发送方持读锁 停止时持写锁 保证停止之后不会再有人往 channel 里写
	isStop     bool
	done       sync.WaitGroup
}

// NewLogger 传入log文件存储的路径 以获取一个新的Logger 并且开始监听
func NewLogger(logPath string) (*Logger, error) {
	e := os.MkdirAll(logPath, 0755)
	if e != nil {
		return nil, e
	}
	result := &Logger{
		logInputChannel: make(chan LogInfo, logChannelSize),
	}
	f, e := os.OpenFile(GenerateLogFilePath(logPath), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if e != nil {
		return nil, e
	}
	result.loggerFile = f
	result.ListenLoggerChannel()
	activeLogger.Store(result)
	return result, nil
}

// StopLogger 停止接收新的 log 把 channel 里剩下的 log 写完之后同步并且关闭文件
func (logger *Logger) StopLogger() {
	logger.stateMutex.Lock()
	if logger.isStop {
		logger.stateMutex.Unlock()
		return
	}
	logger.isStop = true
	close(logger.logInputChannel)
	logger.stateMutex.Unlock()

	activeLogger.CompareAndSwap(logger, nil)
	logger.done.Wait()
}

// ListenLoggerChannel 开始监听channel以接收log信息 写入log文件并且打印
func (logger *Logger) ListenLoggerChannel() {
	logger.done.Add(1)
	go func() {
		defer logger.done.Done()
		var (
			bytes       []byte
			e           error
			writeFailed bool
		)
		for log := range logger.logInputChannel { // channel 关闭且读空之后循环结束
			fmt.Print(log.String())
			if writeFailed {
				continue
			}
			bytes = log.toByteArray()
			_, e = logger.loggerFile.Write(bytes)
			if e != nil { // 写入logger失败 之后只打印不再写文件
				fmt.Println("Can Not Write Log Cause of: ", e.Error())
				writeFailed = true
			}
		}
		e = logger.loggerFile.Sync()
		if e != nil {
			fmt.Println("Can Not Sync Log File Cause of: ", e.Error())
		}
		e = logger.loggerFile.Close() // 关闭文件
		if e != nil {
			fmt.Println("Can Not Close Log File Cause of: ", e.Error())
		}
	}()
}

func GenerateLogFilePath(path string) string {
	fileName := "log." + time.Now().Format("2006_01_02_15_04_05") + ".misaka"
	return filepath.Join(path, fileName)
}
