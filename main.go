package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// 向正在运行的 bikedash 发送 SIGHUP：重新打开日志并重新加载数据
func main() {
	var pidFile string

	cmd := &cobra.Command{
		Use:          "reload",
		Short:        "Ask a running bikedash server to reopen its log and reload data",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid, err := readPid(pidFile)
			if err != nil {
				return err
			}
			if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
				return fmt.Errorf("发送 SIGHUP 到 %d 失败: %w", pid, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "SIGHUP sent to %d\n", pid)
			return nil
		},
	}
	cmd.Flags().StringVar(&pidFile, "pid", "bikedash.pid", "服务写入的 pid 文件")

	if err := cmd.Execute(); err != nil {
		log.Fatal("Failed to send SIGHUP:", err)
	}
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取 pid 文件失败: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid 文件 %s 内容无效: %q", path, data)
	}
	return pid, nil
}
