package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/video-system/go-tether/internal/scratch"
	"github.com/video-system/go-tether/pkg/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached cameras",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		mgr := capture.NewManager(cfg, capture.LibraryLoader(cfg.SDK.SearchDirs...), nil)
		if err := mgr.Initialize(""); err != nil {
			return err
		}
		defer mgr.Terminate()

		devices, err := mgr.ListDevices()
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no cameras attached")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tMODEL\tPORT")
		for _, d := range devices {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Index, d.Description, d.PortName)
		}
		return tw.Flush()
	},
}

var (
	shootIndex int
	shootOut   string
)

var shootCmd = &cobra.Command{
	Use:   "shoot",
	Short: "Take one still and save it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := scratch.New(shootOut)
		if err != nil {
			return err
		}

		mgr := capture.NewManager(cfg, capture.LibraryLoader(cfg.SDK.SearchDirs...), nil, imageOptions(cfg)...)
		if err := mgr.Initialize(""); err != nil {
			return err
		}
		defer mgr.Terminate()

		if _, err := mgr.Connect(shootIndex); err != nil {
			return err
		}
		if err := mgr.OpenSession(); err != nil {
			return err
		}

		res := mgr.TakePicture()
		if !res.Success {
			return fmt.Errorf("capture: %s", res.Error)
		}
		path, err := out.WriteFile("photo", "capture.jpg", res.Image)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	shootCmd.Flags().IntVarP(&shootIndex, "index", "i", 0, "Camera index")
	shootCmd.Flags().StringVarP(&shootOut, "out", "o", ".", "Output directory")
}
