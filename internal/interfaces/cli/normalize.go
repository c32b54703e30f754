package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
)

func newNormalizeCmd() *cobra.Command {
	var motivo, examen string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Preview normalization of clinical text",
		Long:  "Show how the motivo and examen texts are rewritten and which zone they map to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocalService(cmd, func(ctx context.Context, svc apptriage.Service) error {
				n, err := svc.Normalize(ctx, &apptriage.NormalizeInput{MotivoConsulta: motivo, ExamenFisico: examen})
				if err != nil {
					return err
				}
				return PrintResult(cmd, normalizationView{n})
			})
		},
	}

	cmd.Flags().StringVar(&motivo, "motivo", "", "reason for consultation (motivo de consulta)")
	cmd.Flags().StringVar(&examen, "examen", "", "physical examination findings (examen fisico)")
	return cmd
}

type normalizationView struct {
	*triage_model.Normalization
}

func (v normalizationView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Normalization)
}

func (v normalizationView) String() string {
	return fmt.Sprintf("motivo: %s\nexamen: %s\nzona:   %s",
		v.Motivo.Normalized, v.Examen.Normalized, v.ZoneLabel)
}

func (v normalizationView) TableHeaders() []string {
	return []string{"FIELD", "ORIGINAL", "NORMALIZED"}
}

func (v normalizationView) TableRows() [][]string {
	return [][]string{
		{"motivo", v.Motivo.Original, v.Motivo.Normalized},
		{"examen", v.Examen.Original, v.Examen.Normalized},
		{"zona", "", v.ZoneLabel},
	}
}
