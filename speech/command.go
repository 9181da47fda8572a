// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
	"github.com/sakura/springbreak/language"
)

type (
	// Command is a Synthesizer that runs an espeak-ng compatible binary,
	// which must write a WAV clip to stdout. The voice is the base language
	// of the requested tag.
	Command struct {
		path string
		args []string
		log  log.Logger
	}

	// CommandOption represents a single command synthesizer option.
	CommandOption interface{ command(*CommandOptions) }

	// CommandOptions are the resolved command synthesizer options.
	CommandOptions struct {
		// Args are passed before the voice and text arguments.
		Args   []string
		Logger *slog.Logger
	}

	// WithArgs replaces the default arguments.
	WithArgs []string
)

// DefaultCommand is the synthesizer binary looked up on PATH.
const DefaultCommand = "espeak-ng"

// DefaultArgs make espeak-ng write WAV to stdout.
var DefaultArgs = []string{"--stdout"}

// NewCommand creates a synthesizer running the named binary.
func NewCommand(name string, opt ...CommandOption) (*Command, error) {
	opts := CommandOptions{Args: DefaultArgs}
	opts.Apply(opt)

	if name == "" {
		name = DefaultCommand
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, &errors.Error{
			Message:       fmt.Sprintf("synthesizer %q not found", name),
			Kind:          errors.ConfigurationInvalid,
			NestedError:   err,
			PropertyName:  "command",
			PropertyValue: name,
		}
	}

	return &Command{
		path: path,
		args: opts.Args,
		log:  log.Wrap(opts.Logger),
	}, nil
}

// Synthesize speaks the text in the tag's base language.
func (c *Command) Synthesize(
	ctx context.Context,
	text, tag string,
) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Invalid("text", text, "nothing to synthesize")
	}
	voice, err := language.Base(tag)
	if err != nil {
		return nil, err
	}

	args := append(append([]string{}, c.args...), "-v", voice, "--", text)
	// #nosec G204
	cmd := exec.CommandContext(ctx, c.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if e := errors.Context(ctx, "speech synthesis"); e != nil {
			return nil, e
		}
		return nil, &errors.Error{
			Message: fmt.Sprintf("speech synthesis failed: %s",
				strings.TrimSpace(stderr.String())),
			Kind:        errors.ExecutionException,
			NestedError: err,
		}
	}

	c.log.Debug(ctx, "speech synthesized",
		slog.String("voice", voice),
		slog.Int("bytes", stdout.Len()),
	)
	return stdout.Bytes(), nil
}

// Apply resolves the provided list of options.
func (o *CommandOptions) Apply(
	opts []CommandOption,
	rest ...CommandOption,
) {
	for opt := range options.Apply[CommandOption](opts, rest...) {
		opt.command(o)
	}
}

func (o *CommandOptions) command(opt *CommandOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithArgs) command(opt *CommandOptions) {
	opt.Args = o
}

func (o withLogger) command(opt *CommandOptions) {
	opt.Logger = o.Logger
}
