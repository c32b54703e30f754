package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/bootstrap"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// withLocalService builds a pipeline-only service from the CLI context and
// hands it to fn with a CLI-sourced context.
func withLocalService(cmd *cobra.Command, fn func(ctx context.Context, svc apptriage.Service) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.operationContext(cmd)
	defer cancel()

	opts := append(append([]bootstrap.Option(nil), cliCtx.buildOptions...), bootstrap.PipelineOnly())
	app, err := bootstrap.Build(ctx, cliCtx.Config, cliCtx.Logger, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(triage_model.WithSource(ctx, triage_model.SourceCLI), app.Service)
}

// readRequestFile loads a JSON object shaped like the HTTP predict body.
func readRequestFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to read request file").WithDetail(path)
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "request file is not a JSON object").WithDetail(path)
	}
	return raw, nil
}

func newPredictCmd() *cobra.Command {
	var (
		file   string
		dni    string
		motivo string
		examen string
		notas  string
		vitals = make(map[string]*string, len(triage_model.VitalsFields))
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a diagnosis with the local pipeline",
		Long: "Run normalization, feature fusion and the classifier on one consultation.\n" +
			"Values come from --file (same shape as the HTTP predict body) and flags;\n" +
			"flags take precedence.  Nothing is stored.",
		Example: "  sira predict --temperatura 38.5 --edad 40 --f_card 90 --f_resp 22 \\\n" +
			"    --talla 170 --peso 70 --genero M --motivo \"tos con flema\" --examen \"roncus\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := map[string]interface{}{}
			if file != "" {
				var err error
				if raw, err = readRequestFile(file); err != nil {
					return err
				}
			}
			for name, val := range vitals {
				if cmd.Flags().Changed(name) {
					raw[name] = *val
				}
			}
			if cmd.Flags().Changed("motivo") {
				raw["motivo_consulta"] = motivo
			}
			if cmd.Flags().Changed("examen") {
				raw["examenfisico"] = examen
			}
			if cmd.Flags().Changed("dni") {
				raw["dni"] = dni
			}

			v, err := triage_model.DecodeVitals(raw)
			if err != nil {
				return err
			}
			input := &apptriage.PredictInput{
				DNI:            cast.ToString(raw["dni"]),
				Vitals:         v,
				MotivoConsulta: cast.ToString(raw["motivo_consulta"]),
				ExamenFisico:   cast.ToString(raw["examenfisico"]),
			}
			if cmd.Flags().Changed("notas") {
				input.Notes.Notas = &notas
			}

			return withLocalService(cmd, func(ctx context.Context, svc apptriage.Service) error {
				d, err := svc.Predict(ctx, input)
				if err != nil {
					return err
				}
				return PrintResult(cmd, diagnosisView{d})
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON request file")
	f.StringVar(&dni, "dni", "", "patient DNI")
	for _, name := range triage_model.VitalsFields {
		vitals[name] = f.String(name, "", "vital sign "+name)
	}
	f.StringVar(&motivo, "motivo", "", "reason for consultation (motivo de consulta)")
	f.StringVar(&examen, "examen", "", "physical examination findings (examen fisico)")
	f.StringVar(&notas, "notas", "", "free-text note attached to the diagnosis")
	return cmd
}

// diagnosisView renders a diagnosis for text and table output; JSON output
// uses the API representation.
type diagnosisView struct {
	*diagnosis.Diagnosis
}

func (v diagnosisView) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Diagnosis)
}

func (v diagnosisView) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "diagnostico:        %s\n", v.Resultado)
	fmt.Fprintf(&sb, "zona:               %s\n", v.Zona)
	fmt.Fprintf(&sb, "imc:                %s\n", strconv.FormatFloat(v.IMC, 'f', 2, 64))
	fmt.Fprintf(&sb, "motivo_normalizado: %s\n", v.MotivoNormalized)
	fmt.Fprintf(&sb, "examen_normalizado: %s", v.ExamenNormalized)
	return sb.String()
}

func (v diagnosisView) TableHeaders() []string {
	return []string{"DIAGNOSTICO", "ZONA", "IMC", "MOTIVO", "EXAMEN"}
}

func (v diagnosisView) TableRows() [][]string {
	return [][]string{{
		v.Resultado,
		v.Zona,
		strconv.FormatFloat(v.IMC, 'f', 2, 64),
		v.MotivoNormalized,
		v.ExamenNormalized,
	}}
}
