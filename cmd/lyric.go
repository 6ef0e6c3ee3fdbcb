package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"SyncFM/core/lyric"
	"SyncFM/model"

	"github.com/spf13/cobra"
)

var lyricFurigana bool

var lyricCmd = &cobra.Command{
	Use:   "lyric <file>",
	Short: "解析歌词文件",
	Long:  `按会话服务器的歌词格式解析文件，打印每一行的时间和文本，可选添加注音。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadConfig()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		cues, err := lyric.ParseStrict(string(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		store := lyric.NewStore(cues)

		if lyricFurigana {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			annotator := lyric.NewAnnotator(lyric.LoadKagome)
			ready := make(chan struct{})
			annotator.OnReady(func() { close(ready) })
			annotator.Start(ctx)
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
		wait:
			for {
				select {
				case <-ready:
					break wait
				case <-ticker.C:
					if annotator.State() == lyric.StateFailed {
						return fmt.Errorf("tokenizer failed to load")
					}
				case <-ctx.Done():
					return fmt.Errorf("tokenizer not ready: %w", ctx.Err())
				}
			}
			if err := annotator.BackfillAll(ctx, store); err != nil {
				return err
			}
		}

		for _, c := range store.Cues() {
			fmt.Printf("[%s] %s\n", model.FormatSeconds(c.Time), c.Text)
		}
		fmt.Printf("%d lines\n", store.Len())
		return nil
	},
}

func init() {
	lyricCmd.Flags().BoolVar(&lyricFurigana, "furigana", false, "添加注音")
	rootCmd.AddCommand(lyricCmd)
}
