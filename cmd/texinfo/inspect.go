package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gogpu/resource"
	"github.com/gogpu/resource/texture"
)

// textureReport is the JSON form of one inspected texture.
type textureReport struct {
	Name       string             `json:"name"`
	UUID       string             `json:"uuid"`
	Descriptor texture.Descriptor `json:"descriptor"`
	Format     string             `json:"formatName"`
	State      string             `json:"state"`
	Bytes      uint64             `json:"bytes"`
}

func inspectCmd() *cobra.Command {
	var (
		flags   loaderFlags
		root    string
		workers int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <file>...",
		Short: "Load images as textures and print their metadata",
		Long: `Load every file through the resource manager and print its texture
metadata. Files are resolved relative to --root and loaded in parallel.

Examples:
  texinfo inspect --root assets ui/button.png sky.jpg
  texinfo inspect -m -1 --json brick.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loader()
			if err != nil {
				return err
			}

			opts := append(l.ManagerOptions(),
				resource.WithFS(os.DirFS(root)),
				resource.WithWorkers(workers),
			)
			m := resource.NewManager(opts...)
			defer m.Close()

			names := make([]string, len(args))
			for i, arg := range args {
				names[i] = filepath.ToSlash(filepath.Clean(arg))
			}

			handles, err := resource.LoadAll[*texture.Texture](cmd.Context(), m, names...)
			if err != nil {
				return err
			}

			reports := make([]textureReport, 0, len(handles))
			for i, h := range handles {
				tex, err := h.Get()
				if err != nil {
					return err
				}
				d := tex.Descriptor()
				reports = append(reports, textureReport{
					Name:       names[i],
					UUID:       h.UUID(),
					Descriptor: d,
					Format:     d.Format.String(),
					State:      tex.State().String(),
					Bytes:      tex.Size(),
				})
			}
			for _, id := range m.IDs() {
				if err := m.Release(id); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			for _, r := range reports {
				d := r.Descriptor
				fmt.Fprintf(out, "%s\n", r.Name)
				fmt.Fprintf(out, "  UUID:    %s\n", r.UUID)
				fmt.Fprintf(out, "  Type:    %s %dx%dx%d\n", d.Type, d.Width, d.Height, d.Depth)
				fmt.Fprintf(out, "  Format:  %s\n", r.Format)
				fmt.Fprintf(out, "  Mipmaps: %d\n", d.NumMipmaps)
				fmt.Fprintf(out, "  Size:    %d bytes\n", r.Bytes)
				fmt.Fprintf(out, "  State:   %s\n", r.State)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&root, "root", "r", ".", "Directory files are resolved against")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel loads (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}
