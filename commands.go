package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"MisakaKV/customDataStructure/skipList"
	"MisakaKV/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var rootCmd = &cobra.Command{
	Use:   "misakakv",
	Short: "skip list based key-value store",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var serveOptions = DefaultOptions()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the RESP server",
	Long:  "load the dump file, start compaction and serve RESP commands until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, e := Init(serveOptions)
		if e != nil {
			return e
		}

		// 收到退出信号时关闭数据库 ListenAndServe 会随之返回
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		var isStopping atomic.Bool
		destroyed := make(chan error, 1)
		go func() {
			<-quit
			isStopping.Store(true)
			destroyed <- db.Destroy()
		}()

		e = db.StartServe()
		if isStopping.Load() {
			// 等快照保存完再退出
			return <-destroyed
		}
		logger.GenerateErrorLog(false, false, "Server Stopped Unexpectedly", fmt.Sprint(e))
		_ = db.Destroy()
		return e
	},
}

var stressOptions struct {
	threads  int
	count    int
	maxLevel int
	useUUID  bool
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "run a concurrent insert and search stress test",
	RunE: func(cmd *cobra.Command, args []string) error {
		if stressOptions.useUUID {
			return runStress(stressOptions.threads, stressOptions.count, stressOptions.maxLevel, func(r *rand.Rand) string {
				return uuid.NewString()
			})
		}
		return runStress(stressOptions.threads, stressOptions.count, stressOptions.maxLevel, func(r *rand.Rand) int {
			return r.Intn(stressOptions.count)
		})
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&serveOptions.ServerAddr, "addr", DefaultServerAddr, "listen address")
	flags.StringVar(&serveOptions.LoggerPath, "log-path", DefaultLoggerPath, "log folder, empty to disable the log file")
	flags.StringVar(&serveOptions.DumpFilePath, "dump-file", DefaultDumpFilePath, "dump file path, empty to disable persistence")
	flags.StringVar(&serveOptions.Delimiter, "delimiter", DefaultDelimiter, "delimiter between key and value in the dump file")
	flags.IntVar(&serveOptions.MaxLevel, "max-level", DefaultMaxLevel, "max level of the skip list")
	flags.IntVar(&serveOptions.TrackerCapacity, "ttl-capacity", DefaultTrackerCapacity, "max number of keys with ttl, 0 for unlimited")
	flags.DurationVar(&serveOptions.CompactionInterval, "compaction-interval", DefaultCompactionInterval, "interval of the background compaction")

	stressFlags := stressCmd.Flags()
	stressFlags.IntVar(&stressOptions.threads, "threads", 3, "number of goroutines")
	stressFlags.IntVar(&stressOptions.count, "count", 100000, "total number of operations")
	stressFlags.IntVar(&stressOptions.maxLevel, "max-level", DefaultMaxLevel, "max level of the skip list")
	stressFlags.BoolVar(&stressOptions.useUUID, "uuid", false, "use random uuid strings as keys")

	rootCmd.AddCommand(serveCmd, stressCmd)
}

// runStress threads 个协程一共插入 count 个随机的 key 之后再一共查询 count 次 分别记录耗时
func runStress[K int | string](threads int, count int, maxLevel int, randomKey func(r *rand.Rand) K) error {
	if threads <= 0 || count <= 0 {
		return logger.ParameterIsNotAllowed
	}
	sl, e := skipList.NewSkipList[K, string](maxLevel, 0)
	if e != nil {
		return e
	}
	perThread := count / threads

	run := func(operation func(key K)) time.Duration {
		var group errgroup.Group
		start := time.Now()
		for i := 0; i < threads; i++ {
			seed := time.Now().UnixNano() + int64(i)
			group.Go(func() error {
				r := rand.New(rand.NewSource(seed))
				for j := 0; j < perThread; j++ {
					operation(randomKey(r))
				}
				return nil
			})
		}
		_ = group.Wait()
		return time.Since(start)
	}

	insertElapsed := run(func(key K) {
		_ = sl.Insert(key, "test")
	})
	logger.GenerateInfoLog("insert elapsed: " + insertElapsed.String() + ", size: " + strconv.Itoa(sl.Size()))

	var hits atomic.Int64
	searchElapsed := run(func(key K) {
		if sl.Search(key) {
			hits.Add(1)
		}
	})
	logger.GenerateInfoLog("search elapsed: " + searchElapsed.String() + ", hits: " + strconv.FormatInt(hits.Load(), 10))
	return nil
}
