package notify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/perfgo/benchtrack/model"
	"github.com/perfgo/benchtrack/regression"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	colorRegressed = "danger"
	colorImproved  = "good"

	// Measurements listed per attachment, the rest is summarized
	maxListed = 10
)

type Option func(*Slack)

// WithAPIURL points the client at another Slack API endpoint. The URL must
// end with a slash.
func WithAPIURL(url string) Option {
	return func(s *Slack) { s.apiURL = url }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Slack) { s.logger = l }
}

// Slack posts regression reports to a channel
type Slack struct {
	client   *slack.Client
	channel  string
	username string
	apiURL   string
	logger   zerolog.Logger
}

func New(token, channel, username string, opts ...Option) (*Slack, error) {
	if token == "" || channel == "" {
		return nil, errors.New("slack token and channel are required")
	}
	s := &Slack{
		channel:  channel,
		username: username,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	var clientOpts []slack.Option
	if s.apiURL != "" {
		clientOpts = append(clientOpts, slack.OptionAPIURL(s.apiURL))
	}
	s.client = slack.New(token, clientOpts...)
	return s, nil
}

// Notify posts the verdicts of entry. Nothing is posted unless at least one
// measurement regressed or improved. It reports whether a message was sent.
func (s *Slack) Notify(ctx context.Context, tool string, entry *model.Entry, results map[string]regression.Result) (bool, error) {
	summary := regression.Summarize(results)
	if len(summary.Regressed) == 0 && len(summary.Improved) == 0 {
		s.logger.Debug().Str("tool", tool).Msg("No significant change, skipping notification")
		return false, nil
	}

	var attachments []slack.Attachment
	if len(summary.Regressed) > 0 {
		attachments = append(attachments, slack.Attachment{
			Color: colorRegressed,
			Title: fmt.Sprintf("%d regression(s)", len(summary.Regressed)),
			Text:  changes(summary.Regressed, results),
		})
	}
	if len(summary.Improved) > 0 {
		attachments = append(attachments, slack.Attachment{
			Color: colorImproved,
			Title: fmt.Sprintf("%d improvement(s)", len(summary.Improved)),
			Text:  changes(summary.Improved, results),
		})
	}

	text := fmt.Sprintf("Benchmark results for *%s* at `%s`", tool, entry.Commit.ShortID())
	if entry.Commit.URL != "" {
		text = fmt.Sprintf("Benchmark results for *%s* at <%s|%s>", tool, entry.Commit.URL, entry.Commit.ShortID())
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionAttachments(attachments...),
	}
	if s.username != "" {
		opts = append(opts, slack.MsgOptionUsername(s.username))
	}

	if _, _, err := s.client.PostMessageContext(ctx, s.channel, opts...); err != nil {
		return false, errors.Wrapf(err, "failed to post to slack channel %s", s.channel)
	}
	s.logger.Info().
		Str("tool", tool).
		Str("channel", s.channel).
		Int("regressed", len(summary.Regressed)).
		Int("improved", len(summary.Improved)).
		Msg("Posted benchmark notification")
	return true, nil
}

func changes(names []string, results map[string]regression.Result) string {
	var sb strings.Builder
	for i, name := range names {
		if i == maxListed {
			fmt.Fprintf(&sb, "… and %d more\n", len(names)-maxListed)
			break
		}
		r := results[name]
		fmt.Fprintf(&sb, "• %s: %s %s (baseline %s, %+.1f%%)\n",
			name,
			formatValue(r.Value), r.Unit,
			formatValue(r.Baseline),
			r.Delta*100,
		)
	}
	return sb.String()
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3g", v)
}
