// Package template expands placeholders in user-supplied names such as
// snapshot labels.
package template

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"
)

// Expand replaces {placeholder} occurrences in text.
//
// Built-in placeholders:
//
//	{date}      current date, YYYY-MM-DD
//	{time}      current time, HH-MM-SS
//	{datetime}  {date}_{time}
//	{unix}      current Unix timestamp
//	{user}      current username
//	{hostname}  short hostname
//
// All built-in values stay within [a-zA-Z0-9._-] so expanded text
// remains a valid label. Entries in vars override built-ins.
func Expand(text string, vars map[string]string) string {
	now := time.Now()

	placeholders := map[string]string{
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("15-04-05"),
		"datetime": now.Format("2006-01-02_15-04-05"),
		"unix":     fmt.Sprintf("%d", now.Unix()),
		"user":     currentUser(),
		"hostname": shortHostname(),
	}
	for k, v := range vars {
		placeholders[k] = v
	}

	result := text
	for key, value := range placeholders {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}

// ExpandLabel expands a snapshot label with the built-in placeholders.
func ExpandLabel(label string) string {
	return Expand(label, nil)
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func shortHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host, _, _ := strings.Cut(h, ".")
	return host
}
