package alerter

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"FlowTagger/internal/notification"
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Metrics a rule can be evaluated against.
const (
	MetricTagCount      = "tag_count"
	MetricUntaggedRatio = "untagged_ratio"
	MetricSkippedLines  = "skipped_lines"
	MetricTotalLines    = "total_lines"
)

func init() {
	factory.RegisterWriter(config.WriterAlert, func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("alert writer requires smtp.host")
		}
		return New(cfg.Alerter.Rules, notification.NewEmailNotifier(cfg.SMTP), log)
	})
}

// Alerter checks a finished report against threshold rules and sends one
// consolidated notification when any of them trigger.
type Alerter struct {
	rules    []config.AlerterRule
	notifier model.Notifier
	log      logrus.FieldLogger
}

// New validates the rules and creates an Alerter.
func New(rules []config.AlerterRule, notifier model.Notifier, log logrus.FieldLogger) (*Alerter, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("alerter has no rules configured")
	}
	for _, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, err
		}
	}
	return &Alerter{rules: rules, notifier: notifier, log: log}, nil
}

func (a *Alerter) Name() string {
	return "alert"
}

// Write evaluates every rule. No notification is sent when nothing triggers.
func (a *Alerter) Write(ctx context.Context, r *model.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := a.Evaluate(r)
	if len(messages) == 0 {
		a.log.Debug("No alert rule triggered")
		return nil
	}
	a.log.WithField("triggered", len(messages)).Info("Alerter evaluation completed")

	body := "<h1>FlowTagger Alert Summary</h1>" +
		fmt.Sprintf("<p>Report <code>%s</code>: %d lines read, %d skipped.</p><hr>", r.Timestamp, r.Lines, r.Skipped) +
		strings.Join(messages, "<hr>")
	subject := fmt.Sprintf("FlowTagger Alert Summary (%d Triggered)", len(messages))

	if err := a.notifier.Send(subject, body); err != nil {
		return fmt.Errorf("failed to send alert notification: %w", err)
	}
	a.log.Info("Alert notification sent")
	return nil
}

// Evaluate returns one HTML message per triggered rule, in rule order.
func (a *Alerter) Evaluate(r *model.Report) []string {
	var triggered []string
	for _, rule := range a.rules {
		value, unit := observe(rule, r)
		if !check(value, rule.Threshold, rule.Operator) {
			continue
		}
		metric := rule.Metric
		if rule.Metric == MetricTagCount {
			metric += "(" + rule.Tag + ")"
		}
		triggered = append(triggered, fmt.Sprintf("<h3>Alert: %s</h3>"+
			"<ul>"+
			"<li><b>Metric:</b> <code>%s</code></li>"+
			"<li><b>Condition:</b> <code>%s %.2f</code></li>"+
			"<li><b>Observed Value:</b> <code>%s %s</code></li>"+
			"</ul>",
			rule.Name, metric, rule.Operator, rule.Threshold, formatValue(value), unit))
	}
	return triggered
}

func (a *Alerter) Close() error {
	return nil
}

func observe(rule config.AlerterRule, r *model.Report) (float64, string) {
	switch rule.Metric {
	case MetricTagCount:
		return float64(r.Tags[rule.Tag]), "lines"
	case MetricUntaggedRatio:
		classified := r.Classified()
		if classified == 0 {
			return 0, "of classified lines"
		}
		return float64(r.Tags[model.Untagged]) / float64(classified), "of classified lines"
	case MetricSkippedLines:
		return float64(r.Skipped), "lines"
	default:
		return float64(r.Lines), "lines"
	}
}

func formatValue(v float64) string {
	if v == float64(uint64(v)) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func validateRule(rule config.AlerterRule) error {
	switch rule.Metric {
	case MetricTagCount:
		if rule.Tag == "" {
			return fmt.Errorf("alert rule '%s': metric %s requires a tag", rule.Name, rule.Metric)
		}
	case MetricUntaggedRatio, MetricSkippedLines, MetricTotalLines:
	default:
		return fmt.Errorf("alert rule '%s': unknown metric '%s'", rule.Name, rule.Metric)
	}
	switch rule.Operator {
	case ">", "<", "=", ">=", "<=":
	default:
		return fmt.Errorf("alert rule '%s': unknown operator '%s'", rule.Name, rule.Operator)
	}
	return nil
}

// check compares a value against a threshold based on an operator.
func check(value, threshold float64, operator string) bool {
	switch operator {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case "=":
		return value == threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	default:
		return false
	}
}
