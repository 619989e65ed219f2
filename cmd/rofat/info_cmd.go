package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aligator/rofat"
)

type volumeInfo struct {
	Image             string  `json:"image" yaml:"image"`
	ImageFormat       string  `json:"imageFormat" yaml:"imageFormat"`
	Kind              string  `json:"kind" yaml:"kind"`
	Label             string  `json:"label" yaml:"label"`
	VolumeID          string  `json:"volumeId" yaml:"volumeId"`
	FilesystemType    string  `json:"filesystemType" yaml:"filesystemType"`
	BytesPerSector    uint16  `json:"bytesPerSector" yaml:"bytesPerSector"`
	SectorsPerCluster uint8   `json:"sectorsPerCluster" yaml:"sectorsPerCluster"`
	BytesPerCluster   uint32  `json:"bytesPerCluster" yaml:"bytesPerCluster"`
	TotalSectors      uint32  `json:"totalSectors" yaml:"totalSectors"`
	Clusters          uint32  `json:"clusters" yaml:"clusters"`
	AllocationTables  uint8   `json:"allocationTables" yaml:"allocationTables"`
	ActiveTable       uint8   `json:"activeTable" yaml:"activeTable"`
	Mirroring         bool    `json:"mirroring" yaml:"mirroring"`
	RootCluster       uint32  `json:"rootCluster,omitempty" yaml:"rootCluster,omitempty"`
	FreeClusters      *uint32 `json:"freeClusters,omitempty" yaml:"freeClusters,omitempty"`
}

func createInfoCommand(opts *globalOptions) *cobra.Command {
	var format string
	var pretty bool

	cmd := &cobra.Command{
		Use:   "info [flags] IMAGE",
		Short: "Show the parameters of the filesystem",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unsupported --format %q (supported: text, json, yaml)", format)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, img, err := opts.mount(args[0])
			if err != nil {
				return err
			}
			defer img.Close()

			bpb := fsys.BPB()
			info := volumeInfo{
				Image:             args[0],
				ImageFormat:       img.Format.String(),
				Kind:              fsys.Kind().String(),
				Label:             fsys.Label(),
				VolumeID:          fmt.Sprintf("%04X-%04X", bpb.VolumeID()>>16, bpb.VolumeID()&0xFFFF),
				FilesystemType:    strings.TrimSpace(bpb.FilesystemType()),
				BytesPerSector:    bpb.BytesPerSector(),
				SectorsPerCluster: bpb.SectorsPerCluster(),
				BytesPerCluster:   bpb.BytesPerCluster(),
				TotalSectors:      bpb.TotalSectorCount(),
				Clusters:          bpb.DataClusterCount(),
				AllocationTables:  bpb.AllocationTableCount(),
				ActiveTable:       bpb.ActiveAllocationTableIndex(),
				Mirroring:         bpb.AllocationTableMirroringEnabled(),
			}
			if cluster, ok := bpb.RootDirectoryCluster(); ok {
				info.RootCluster = cluster
			}
			if hints, ok := fsys.FSInfo(); ok && hints.FreeClusters != rofat.FSInfoUnknown {
				free := hints.FreeClusters
				info.FreeClusters = &free
			}

			return writeInfo(cmd.OutOrStdout(), info, format, pretty)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "pretty-print JSON output (only for --format json)")
	return cmd
}

func writeInfo(out io.Writer, info volumeInfo, format string, pretty bool) error {
	switch format {
	case "text":
		fmt.Fprintf(out, "Image:               %s (%s)\n", info.Image, info.ImageFormat)
		fmt.Fprintf(out, "Type:                %s\n", info.Kind)
		fmt.Fprintf(out, "Label:               %s\n", info.Label)
		fmt.Fprintf(out, "Volume ID:           %s\n", info.VolumeID)
		fmt.Fprintf(out, "Bytes per sector:    %d\n", info.BytesPerSector)
		fmt.Fprintf(out, "Sectors per cluster: %d\n", info.SectorsPerCluster)
		fmt.Fprintf(out, "Total sectors:       %d\n", info.TotalSectors)
		fmt.Fprintf(out, "Clusters:            %d\n", info.Clusters)
		fmt.Fprintf(out, "Allocation tables:   %d (active %d, mirrored %t)\n", info.AllocationTables, info.ActiveTable, info.Mirroring)
		if info.RootCluster != 0 {
			fmt.Fprintf(out, "Root cluster:        %d\n", info.RootCluster)
		}
		if info.FreeClusters != nil {
			fmt.Fprintf(out, "Free clusters:       %d\n", *info.FreeClusters)
		}
		return nil

	case "json":
		var (
			b   []byte
			err error
		)
		if pretty {
			b, err = json.MarshalIndent(info, "", "  ")
		} else {
			b, err = json.Marshal(info)
		}
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(b))
		return nil

	case "yaml":
		b, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		_, _ = out.Write(b)
		return nil

	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
