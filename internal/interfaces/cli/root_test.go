package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/bootstrap"
	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/internal/testutil"
)

// writeConfig writes a YAML config whose artifact directory holds the
// fixture bundle, plus any extra top-level YAML.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := testutil.WriteArtifacts(t)
	path := filepath.Join(t.TempDir(), "sira.yaml")
	body := "artifacts:\n  dir: " + dir + "\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testDeps() *Deps {
	emb := testutil.NewClinicalStubEmbedder(symptom_norm.DefaultVocabulary().Terms(), map[string]string{
		"dificultad": "dificultad respiratoria",
	})
	return &Deps{BuildOptions: []bootstrap.Option{bootstrap.WithEmbedder(emb)}}
}

// run executes the root command and returns stdout and the error.
func run(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand(nil)
	assert.Equal(t, "sira", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"predict", "normalize", "migrate", "artifacts", "version"} {
		assert.True(t, names[name], "missing subcommand %q", name)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	pf := NewRootCommand(nil).PersistentFlags()

	cfg := pf.Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
	assert.Equal(t, "", cfg.DefValue)

	out := pf.Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "text", out.DefValue)

	verbose := pf.Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	assert.NotNil(t, pf.Lookup("timeout"))
	assert.NotNil(t, pf.Lookup("log-level"))
}

func TestVersionCmd_NeedsNoConfig(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	Version, GitCommit = "1.2.3", "abc123"
	defer func() { Version, GitCommit = origVersion, origCommit }()

	out, err := run(t, nil, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "sira 1.2.3")
	assert.Contains(t, out, "abc123")
}

func TestExecute_UnknownSubcommand(t *testing.T) {
	_, err := run(t, nil, "unknownsubcommand")
	assert.Error(t, err)
}

func TestPersistentPreRun_MissingConfigFile(t *testing.T) {
	_, err := run(t, nil, "normalize", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, 2, bootstrap.ExitCode(err))
}

func TestPersistentPreRun_InvalidLogLevel(t *testing.T) {
	_, err := run(t, nil, "normalize", "--config", writeConfig(t, ""), "--log-level", "loud")
	require.Error(t, err)
	assert.Equal(t, 2, bootstrap.ExitCode(err))
}

func TestGetCLIContext_Missing(t *testing.T) {
	_, err := GetCLIContext(&cobra.Command{})
	assert.Error(t, err)
}

type tableData struct{}

func (tableData) TableHeaders() []string { return []string{"A", "B"} }
func (tableData) TableRows() [][]string  { return [][]string{{"1", "22"}} }
func (tableData) String() string         { return "plain" }

func TestPrintResult_Formats(t *testing.T) {
	for _, tc := range []struct {
		format string
		want   string
	}{
		{"text", "plain\n"},
		{"table", "A  B \n-  --\n1  22\n"},
		{"json", "{}\n"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			cmd := &cobra.Command{}
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetContext(contextWith(&CLIContext{OutputFormat: tc.format}))
			require.NoError(t, PrintResult(cmd, tableData{}))
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestPrintResult_NoContextFallsBackToJSON(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	require.NoError(t, PrintResult(cmd, map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n":1}`, buf.String())
}

func TestFormatTable(t *testing.T) {
	assert.Equal(t, "", FormatTable(nil, nil))

	out := FormatTable([]string{"NAME", "ZONE"}, [][]string{{"bronquitis", "bronquios"}, {"x"}})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "NAME        ZONE     ", lines[0])
	assert.Equal(t, "----------  ---------", lines[1])
	assert.Equal(t, "bronquitis  bronquios", lines[2])
	assert.Equal(t, "x                    ", lines[3])
}

func TestPrintError(t *testing.T) {
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetErr(&buf)
	PrintError(cmd, nil)
	assert.Empty(t, buf.String())
	PrintError(cmd, assert.AnError)
	assert.True(t, strings.HasPrefix(buf.String(), "Error: "))
}
