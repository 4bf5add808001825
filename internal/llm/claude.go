package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
)

// cliResult is what one CLI run produced.
type cliResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// runCLIFn is swapped in tests.
var runCLIFn = runCLI

// ClaudeCLIClient shells out to the claude CLI in print mode.
type ClaudeCLIClient struct {
	Binary  string
	WorkDir string
	logger  *slog.Logger
}

func NewClaudeCLIClient(binary, workDir string, logger *slog.Logger) *ClaudeCLIClient {
	if strings.TrimSpace(binary) == "" {
		binary = "claude"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaudeCLIClient{Binary: binary, WorkDir: workDir, logger: logger.With("component", "claude_cli")}
}

func (c *ClaudeCLIClient) Generate(ctx context.Context, document string, p Params) (string, error) {
	const op = "llm.ClaudeCLI"
	prompt := document
	if p.System != "" {
		prompt = p.System + "\n\n" + document
	}
	args := []string{"-p", prompt, "--output-format", "json"}
	if p.Model != "" {
		args = append(args, "--model", p.Model)
	}

	res, err := runCLIFn(ctx, c.Binary, c.WorkDir, args)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", apperr.Wrapf(apperr.KindConfiguration, op, err, "%s not found on PATH", c.Binary)
		}
		if t := classifyTransport(op, err); t != nil {
			return "", t
		}
		return "", apperr.Wrap(apperr.KindTransport, op, err)
	}
	if res.ExitCode != 0 {
		return "", apperr.New(apperr.KindUpstream, op, fmt.Sprintf("exit status %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)))
	}

	// --output-format json wraps the reply in {"result": ...}; plain stdout
	// is used as is when that envelope is missing.
	var parsed struct {
		Result  string `json:"result"`
		IsError bool   `json:"is_error"`
	}
	text := string(res.Stdout)
	if err := json.Unmarshal(res.Stdout, &parsed); err == nil {
		if parsed.IsError {
			return "", apperr.New(apperr.KindUpstream, op, strings.TrimSpace(parsed.Result))
		}
		text = parsed.Result
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.New(apperr.KindUpstream, op, "empty response")
	}
	c.logger.Debug("model call complete", "duration", res.Duration, "chars", len(text))
	return text, nil
}

func runCLI(ctx context.Context, binary, workDir string, args []string) (cliResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = workDir
	// CLAUDECODE makes the CLI think it is nested inside another session.
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "CLAUDECODE=") {
			cmd.Env = append(cmd.Env, env)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := cliResult{Stdout: stdout.Bytes(), Stderr: stderr.String(), Duration: time.Since(start)}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
