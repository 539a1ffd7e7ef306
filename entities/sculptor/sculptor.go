// Package sculptor asks a vision model for one incremental edit to a
// geometry program.
package sculptor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"shape-studio/tools/llm"
	"shape-studio/tools/logger"
	"shape-studio/tools/render"
)

// Options configures a Sculptor
type Options struct {
	Guide       string   // kernel reference embedded in the system prompt
	Views       []string // view names sent to the model, default all six
	MaxTokens   int
	Temperature *float64
}

// Sculptor proposes program edits from target and current renders
type Sculptor struct {
	client llm.Client
	opts   Options
	log    *logger.Logger
}

// New creates a new Sculptor
func New(client llm.Client, opts Options, log *logger.Logger) *Sculptor {
	if opts.Guide == "" {
		opts.Guide = DefaultGuide
	}
	if len(opts.Views) == 0 {
		for _, v := range render.Views {
			opts.Views = append(opts.Views, v.Name)
		}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if log == nil {
		log = logger.Default()
	}
	return &Sculptor{
		client: client,
		opts:   opts,
		log:    log.WithPrefix("sculptor"),
	}
}

// ProposalError reports a failed or unusable proposal
type ProposalError struct {
	Response string // raw model text, if any
	Err      error
}

func (e *ProposalError) Error() string {
	return fmt.Sprintf("proposal failed: %v", e.Err)
}

func (e *ProposalError) Unwrap() error {
	return e.Err
}

// Propose returns a complete replacement for program. The result may be
// identical to program.
func (s *Sculptor) Propose(ctx context.Context, program string, target, current *render.ViewSet) (string, error) {
	done := s.log.Step("Proposing edit")
	defer done()

	for _, vs := range []*render.ViewSet{target, current} {
		if err := vs.Validate(); err != nil {
			return "", &ProposalError{Err: err}
		}
	}

	parts, err := s.buildContent(program, target, current)
	if err != nil {
		return "", &ProposalError{Err: err}
	}

	resp, err := s.client.Complete(ctx, s.buildSystemPrompt(), []llm.Message{llm.UserMessage(parts...)}, &llm.RequestOptions{
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		return "", &ProposalError{Err: err}
	}

	s.log.Tokens(resp.InputTokens, resp.OutputTokens)

	if resp.WasTruncated() {
		return "", &ProposalError{Response: resp.Content, Err: fmt.Errorf("response truncated at %d tokens", s.opts.MaxTokens)}
	}

	code := ExtractProgram(resp.Content)
	if strings.TrimSpace(code) == "" {
		return "", &ProposalError{Response: resp.Content, Err: errors.New("no program found in response")}
	}
	return code, nil
}

func (s *Sculptor) buildContent(program string, target, current *render.ViewSet) ([]llm.Part, error) {
	var parts []llm.Part
	add := func(title string, vs *render.ViewSet) error {
		for _, img := range vs.Images {
			if !s.wants(img.View.Name) {
				continue
			}
			data, err := img.Base64()
			if err != nil {
				return err
			}
			parts = append(parts,
				llm.Text(fmt.Sprintf("%s (%s view):", title, img.View.Label)),
				llm.Image(img.MediaType(), data),
			)
		}
		return nil
	}
	if err := add("Target", target); err != nil {
		return nil, err
	}
	if err := add("Current result", current); err != nil {
		return nil, err
	}
	parts = append(parts, llm.Text("Current code:\n"+program))
	return parts, nil
}

func (s *Sculptor) wants(view string) bool {
	for _, v := range s.opts.Views {
		if v == view {
			return true
		}
	}
	return false
}

func (s *Sculptor) buildSystemPrompt() string {
	return fmt.Sprintf(`You are an expert in 3D modeling and 3D understanding. You will be given two sets of labelled images:
- views of the target object
- the same views of the current result of running the existing code

You will also be given the current Go program that attempts to create this 3D object.

Your task is to suggest a SINGLE, SMALL EDIT to the existing code to make the result closer to the target object.

The edit should be an atomic change such as:
- Fixing a transformation (position, rotation, scale)
- Adding a new primitive and unioning it with the current result
- Subtracting a primitive from the current result
- Modifying parameters of an existing primitive
- Changing a CSG operation

If the current result already matches the target, return the current code unchanged.

Return ONLY the complete, updated Go program. Do not include any JSON, markdown formatting, or explanations.

The program must:
1. Define a function named create_object() that returns the final *csg.Shape
2. Use csg operations (not raw mesh data with vertices and faces)

Here is the kernel reference:

%s

Focus on making one specific improvement to bring the current result closer to the target object.`, s.opts.Guide)
}

var (
	wholeFence = regexp.MustCompile("^```[A-Za-z0-9_-]*[ \t]*\n?([\\s\\S]*?)```\\s*$")
	firstFence = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\n(.*?)```")
)

// ExtractProgram strips a markdown fence from model output. A response that
// is entirely one fenced block yields its body; otherwise the first fenced
// block is used; otherwise the text is returned unchanged. Only the fence
// lines are removed, so a fenced copy of a program compares equal to it.
func ExtractProgram(content string) string {
	if m := wholeFence.FindStringSubmatch(strings.TrimSpace(content)); m != nil && !strings.Contains(m[1], "```") {
		return m[1]
	}
	if m := firstFence.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return content
}
