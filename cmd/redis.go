package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"SyncFM/cache"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var flushFurigana bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "检查Redis缓存",
	Long: `检查Redis连接，显示当前服务器上次会话结束时的延迟。
加上 --flush-furigana 会清空已缓存的注音歌词行。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if !cfg.RedisEnabled() {
			return errors.New("REDIS_HOST is not set")
		}
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()
		return inspectCaches(cmd.Context(), cmd.OutOrStdout(), cache.RedisClient, cfg.ServerURL, flushFurigana)
	},
}

func init() {
	redisCmd.Flags().BoolVar(&flushFurigana, "flush-furigana", false, "delete cached furigana lines")
	rootCmd.AddCommand(redisCmd)
}

func inspectCaches(ctx context.Context, w io.Writer, client *redis.Client, serverURL string, flush bool) error {
	if err := cache.CheckRedis(ctx, client); err != nil {
		return err
	}
	fmt.Fprintf(w, "Redis %s 可用\n", client.Options().Addr)

	v, ok, err := cache.NewLatencyCache(client).Load(ctx, serverURL)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, latencyLine(serverURL, v, ok))

	if !flush {
		return nil
	}
	n, err := cache.NewFuriganaCache(client).Flush(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "已删除 %d 条注音缓存\n", n)
	return nil
}

func latencyLine(serverURL string, seconds float64, ok bool) string {
	if !ok {
		return fmt.Sprintf("%s 尚未记录延迟", serverURL)
	}
	return fmt.Sprintf("%s 上次会话结束时延迟 %.1fs（新会话仍从初始值开始）", serverURL, seconds)
}
