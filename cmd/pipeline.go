package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/audiolibrelab/recdroidvid/internal/media"
	"github.com/audiolibrelab/recdroidvid/internal/output"
)

// executePipeline runs steps on each video. A failing step skips the rest of
// that video's steps; the other videos are still processed.
func executePipeline(ctx context.Context, proc *media.Processor, out *output.Formatter, videos []string, steps []media.Step) error {
	if len(steps) == 0 {
		return nil
	}

	var errs []error
	for _, video := range videos {
		for i, step := range steps {
			out.StepHeader(fmt.Sprintf("step %d/%d %s", i+1, len(steps), step), video)

			if err := proc.Run(ctx, video, []media.Step{step}); err != nil {
				out.Error(err.Error())
				errs = append(errs, err)
				break
			}
		}
	}
	return errors.Join(errs...)
}

// resolveSteps returns the pipeline to run, requiring at least one step.
func resolveSteps() ([]media.Step, error) {
	steps, err := cfg.Steps()
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no pipeline specified, use -p flag (e.g., -p ipa)")
	}
	return steps, nil
}
