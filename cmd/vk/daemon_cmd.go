package main

import (
	"fmt"
	"os"

	"github.com/mlicam/vibe-kanban/internal/daemon"
	"github.com/mlicam/vibe-kanban/internal/version"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background daemon",
	}
	cmd.AddCommand(daemonStartCmd())
	cmd.AddCommand(daemonStopCmd())
	cmd.AddCommand(daemonStatusCmd())
	return cmd
}

func daemonStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon if it is not running",
		RunE: func(cmd *cobra.Command, args []string) error {
			if info, err := daemon.GetRunningDaemon(); err == nil && daemon.IsDaemonAlive(info.Addr) {
				fmt.Printf("Daemon already running (pid %d on %s)\n", info.PID, info.Addr)
				return nil
			}
			if err := ensureDaemon(); err != nil {
				return err
			}
			info, err := daemon.GetRunningDaemon()
			if err != nil {
				return err
			}
			fmt.Printf("Daemon started (pid %d on %s)\n", info.PID, info.Addr)
			return nil
		},
	}
}

func daemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := daemon.GetRunningDaemon()
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Daemon not running")
					return nil
				}
				return err
			}
			if !daemon.KillDaemon(info) {
				return fmt.Errorf("failed to stop daemon (pid %d)", info.PID)
			}
			fmt.Println("Daemon stopped")
			return nil
		},
	}
}

func daemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := daemon.GetRunningDaemon()
			if err != nil || !daemon.IsDaemonAlive(info.Addr) {
				fmt.Println("Daemon not running")
				return nil
			}
			fmt.Printf("Daemon running (pid %d on %s, version %s)\n", info.PID, info.Addr, info.Version)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vk version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vk %s\n", version.Full())
		},
	}
}
