package decompose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcoord/types"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const systemPrompt = `You split a goal into concrete tasks for a team of agents.
Reply with a single JSON object and nothing else:
{"tasks":[{"id":"t1","description":"...","required_skills":["..."],"estimated_minutes":60,"depends_on":["..."]}]}
Use short lowercase skill tags. depends_on lists ids of tasks that must finish first.`

// OpenAIOptions configure the chat-model decomposer.
type OpenAIOptions struct {
	Model           string
	Temperature     float64
	DefaultDuration time.Duration
}

// OpenAI asks a chat completion model for a task list.
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
	logger *zap.Logger
}

// NewOpenAI creates a decomposer that talks to the given client.
func NewOpenAI(client *openai.Client, logger *zap.Logger, optFns ...func(o *OpenAIOptions)) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := OpenAIOptions{
		Model:           openai.ChatModelGPT4oMini,
		Temperature:     0.2,
		DefaultDuration: 4 * time.Hour,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &OpenAI{
		client: client,
		opts:   opts,
		logger: logger.With(zap.String("component", "openai_decomposer")),
	}
}

// NewOpenAIWithKey builds the client from an API key and optional base URL.
func NewOpenAIWithKey(apiKey, baseURL string, logger *zap.Logger, optFns ...func(o *OpenAIOptions)) *OpenAI {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(reqOpts...)
	return NewOpenAI(&client, logger, optFns...)
}

// Decompose sends the goal to the model and parses the returned task list.
func (d *OpenAI) Decompose(ctx context.Context, goal string, hint Hint) ([]types.Task, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, types.NewError(types.ErrInvalidInput, "goal is empty")
	}

	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(goal, hint)),
		},
		Model:       d.opts.Model,
		Temperature: openai.Float(d.opts.Temperature),
	})
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "goal decomposition request failed").
			WithCause(err).WithRetryable(true)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "goal decomposition returned no choices")
	}

	tasks, err := ParseTasks(resp.Choices[0].Message.Content)
	if err != nil {
		d.logger.Warn("unparseable decomposition", zap.String("model", d.opts.Model), zap.Error(err))
		return nil, err
	}

	d.logger.Debug("goal decomposed",
		zap.String("model", d.opts.Model),
		zap.Int("tasks", len(tasks)),
	)
	return Normalize(tasks, d.opts.DefaultDuration, hint.MaxTasks)
}

func userPrompt(goal string, hint Hint) string {
	var b strings.Builder
	b.WriteString("Goal: ")
	b.WriteString(goal)
	if hint.MaxTasks > 0 {
		fmt.Fprintf(&b, "\nProduce at most %d tasks.", hint.MaxTasks)
	}
	if len(hint.Participants) > 0 {
		b.WriteString("\nTeam skills:")
		for _, p := range hint.Participants {
			fmt.Fprintf(&b, "\n- %s: %s", p.Agent.ID, strings.Join(p.Skills, ", "))
		}
	}
	return b.String()
}

// ParseTasks extracts the task list from a model reply. Surrounding prose and
// code fences are ignored.
func ParseTasks(content string) ([]types.Task, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, types.NewError(types.ErrUpstreamError, "decomposition reply contains no JSON object")
	}
	raw := content[start : end+1]
	if !gjson.Valid(raw) {
		return nil, types.NewError(types.ErrUpstreamError, "decomposition reply is not valid JSON")
	}

	list := gjson.Get(raw, "tasks")
	if !list.IsArray() {
		return nil, types.NewError(types.ErrUpstreamError, `decomposition reply has no "tasks" array`)
	}

	var tasks []types.Task
	list.ForEach(func(_, item gjson.Result) bool {
		task := types.Task{
			ID:                item.Get("id").String(),
			Description:       item.Get("description").String(),
			EstimatedDuration: time.Duration(item.Get("estimated_minutes").Float() * float64(time.Minute)),
			Priority:          int(item.Get("priority").Int()),
		}
		for _, s := range item.Get("required_skills").Array() {
			task.RequiredSkills = append(task.RequiredSkills, s.String())
		}
		for _, dep := range item.Get("depends_on").Array() {
			task.DependsOn = append(task.DependsOn, dep.String())
		}
		tasks = append(tasks, task)
		return true
	})

	if len(tasks) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "decomposition reply has no tasks")
	}
	return tasks, nil
}
