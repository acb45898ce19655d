package distill

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinLength is the shortest text considered worth remembering.
const MinLength = 10

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^heartbeat`),
	regexp.MustCompile(`(?i)^\[?cron[:\]\s]`),
	regexp.MustCompile(`(?i)^\[?system[\]:\s]`),
	regexp.MustCompile(`(?i)^<(system|command|local-command)[-\w]*>`),
	regexp.MustCompile(`(?i)^caveat: the messages below`),
	regexp.MustCompile(`(?i)^\[request interrupted`),
	regexp.MustCompile(`(?i)^(warmup|test message|this is a test)\b`),
	regexp.MustCompile(`^\[?\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}`),
	regexp.MustCompile(`^\[\d{1,2}:\d{2}(:\d{2})?\]`),
	regexp.MustCompile(`(?i)^(hi|hello|hey|yo|thanks|thank you|ok|okay|test|testing|ping|你好|谢谢|好的)[\s!.?。！？~]*$`),
}

// matchesNoise reports whether text matches one of the boilerplate patterns
// emitted by schedulers, heartbeats and tool harnesses.
func matchesNoise(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, p := range noisePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// IsNoise reports whether text is too short or is system chatter.
func IsNoise(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinLength {
		return true
	}
	return matchesNoise(text)
}

var triggerKeywords = []string{
	"bug", "fix", "never", "always", "must", "important", "critical", "warning",
	"decision", "decided", "architecture", "design", "todo", "fixme",
	"convention", "rule", "gotcha", "pitfall", "don't", "do not",
	"注意", "坑", "修复", "不要", "必须", "重要", "决定", "决策", "选择",
	"方案", "架构", "设计", "规则", "约定", "规范",
}

// HasTrigger reports whether text contains a trigger keyword, ignoring case.
func HasTrigger(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
