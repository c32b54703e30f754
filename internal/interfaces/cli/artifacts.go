package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sira-Clinica/backend/internal/infrastructure/storage/minio"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// artifactSyncer is the subset of *minio.ArtifactStore the commands use.
type artifactSyncer interface {
	Pull(ctx context.Context, dir string) (*minio.SyncResult, error)
	Push(ctx context.Context, dir string) (*minio.SyncResult, error)
}

var newArtifactSyncer = func(c *CLIContext) (artifactSyncer, error) {
	client, err := minio.NewClient(c.Config.MinIO, c.Logger)
	if err != nil {
		return nil, err
	}
	return minio.NewArtifactStore(client, c.Logger), nil
}

// SyncReport is the output of artifacts pull and push.
type SyncReport struct {
	Dir         string   `json:"dir"`
	Transferred []string `json:"transferred"`
	Skipped     []string `json:"skipped"`
}

func (r SyncReport) String() string {
	return "dir:         " + r.Dir + "\n" +
		"transferred: " + strings.Join(r.Transferred, ", ") + "\n" +
		"skipped:     " + strings.Join(r.Skipped, ", ")
}

func (r SyncReport) TableHeaders() []string { return []string{"ARTIFACT", "STATUS"} }

func (r SyncReport) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Transferred)+len(r.Skipped))
	for _, name := range r.Transferred {
		rows = append(rows, []string{name, "transferred"})
	}
	for _, name := range r.Skipped {
		rows = append(rows, []string{name, "skipped"})
	}
	return rows
}

func newArtifactsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Synchronize the model artifact bundle with object storage",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "local artifact directory (default: artifacts.dir)")

	syncCmd := func(push bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.MinIO.Enabled() {
				return errors.Configuration("minio.endpoint is not configured")
			}
			target := dir
			if target == "" {
				target = cliCtx.Config.Artifacts.Dir
			}

			store, err := newArtifactSyncer(cliCtx)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.operationContext(cmd)
			defer cancel()

			var res *minio.SyncResult
			if push {
				res, err = store.Push(ctx, target)
			} else {
				res, err = store.Pull(ctx, target)
			}
			if err != nil {
				return err
			}
			return PrintResult(cmd, SyncReport{Dir: target, Transferred: res.Transferred, Skipped: res.Skipped})
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "pull",
			Short: "Download the bundle into the local directory",
			RunE:  syncCmd(false),
		},
		&cobra.Command{
			Use:   "push",
			Short: "Upload the local bundle",
			RunE:  syncCmd(true),
		},
	)
	return cmd
}
