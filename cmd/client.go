package cmd

import (
	"SyncFM/client"
	"SyncFM/logger"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	controlAddr string
	autoplay    bool
	noFurigana  bool
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "加入收听会话",
	Long:  `连接会话服务器并同步播放，直到连接断开或收到中断信号。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd)
	},
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, clientCmd} {
		c.Flags().StringVar(&serverURL, "server", "", "会话服务器 websocket 地址，覆盖 SERVER_URL")
		c.Flags().StringVar(&controlAddr, "control", "", "本地控制接口地址，覆盖 CONTROL_ADDR")
		c.Flags().BoolVar(&autoplay, "autoplay", false, "允许自动播放，无需先按播放")
		c.Flags().BoolVar(&noFurigana, "no-furigana", false, "不为歌词添加注音")
	}
	rootCmd.AddCommand(clientCmd)
}

func runClient(cmd *cobra.Command) error {
	cfg := loadConfig()
	defer logger.Sync()

	if serverURL != "" {
		cfg.ServerURL = serverURL
		cfg.StreamBaseURL = ""
	}
	if cmd.Flags().Changed("control") {
		cfg.ControlAddr = controlAddr
	}
	if cmd.Flags().Changed("autoplay") {
		cfg.Autoplay = autoplay
	}
	if noFurigana {
		cfg.Furigana = false
	}
	cfg.Normalize()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	return client.Run(ctx, cfg, client.Options{EnvFile: envFile})
}
