package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/rules"
	"github.com/flowport/flowport/pkg/target"
)

func newConvertCommand() *cobra.Command {
	var (
		outPath   string
		threshold float64
		process   string
		report    bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file.bpmn>",
		Short: "Convert a local BPMN file to a workflow, offline",
		Long: `Convert parses a BPMN 2.0 file and runs the conversion rules without
touching any vendor or target API. The resulting workflow is written as
YAML, together with the per-element conversion report when --report is
set. Useful for previewing how a process maps before a real migration.`,
		Example: `  flowport convert process.bpmn
  flowport convert process.bpmn --out workflow.yaml --report
  flowport convert process.bpmn --process order-handling --threshold 0.8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			processes, err := bpmn.Parse(data)
			if err != nil {
				return err
			}
			p, err := pickProcess(processes, process)
			if err != nil {
				return err
			}

			logger := zerolog.Nop()
			if verbose {
				logger = zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
			}
			conv := rules.NewConverter(
				rules.WithReviewThreshold(threshold),
				rules.WithLogger(logger),
			)
			w, rep, err := conv.Convert(p)
			if err != nil {
				return err
			}

			if err := emitWorkflow(cmd, outPath, w, rep, report); err != nil {
				return err
			}
			fmt.Fprint(cmd.ErrOrStderr(), rep.Summary())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the workflow YAML to a file instead of stdout")
	cmd.Flags().Float64Var(&threshold, "threshold", rules.DefaultReviewThreshold, "confidence below which an element is flagged for review")
	cmd.Flags().StringVar(&process, "process", "", "process ID to convert when the file defines several")
	cmd.Flags().BoolVar(&report, "report", false, "include the per-element conversion report in the output")
	return cmd
}

func pickProcess(processes []*bpmn.Process, id string) (*bpmn.Process, error) {
	if id == "" {
		if len(processes) > 1 {
			ids := make([]string, len(processes))
			for i, p := range processes {
				ids[i] = p.ID
			}
			return nil, fmt.Errorf("file defines %d processes %v, pick one with --process", len(processes), ids)
		}
		return processes[0], nil
	}
	for _, p := range processes {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no process with ID %q in file", id)
}

func emitWorkflow(cmd *cobra.Command, outPath string, w *target.Workflow, rep *rules.Report, withReport bool) error {
	var doc interface{} = w
	if withReport {
		doc = struct {
			Workflow *target.Workflow `yaml:"workflow" json:"workflow"`
			Report   *rules.Report    `yaml:"report" json:"report"`
		}{w, rep}
	}

	var data []byte
	var err error
	if jsonOutput {
		data, err = jsonMarshalIndent(doc)
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}

	if outPath == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", outPath)
	return nil
}
