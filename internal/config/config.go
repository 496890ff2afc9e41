package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Location    *time.Location

	// Sync settings.
	CourseID        int64    // course all SMS groups live in
	UserFields      []string // profile fields synced from the feed
	GenderOptions   []string // site gender option list
	Safeguard       int      // minimum records before a feed is trusted
	ImportInterval  time.Duration
	CleanupInterval time.Duration

	// Telegram notification channel. Empty token disables it.
	BotToken     string
	AdminChatIDs []int64
	NotifyErrors []string // error codes forwarded to admins
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Pacific/Auckland")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_CHAT_IDS: %w", err)
	}
	courseID, err := strconv.ParseInt(getenv("SMS_COURSE_ID", "1"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("SMS_COURSE_ID: %w", err)
	}
	safeguard, err := strconv.Atoi(getenv("SMS_SAFEGUARD", "10"))
	if err != nil {
		return nil, fmt.Errorf("SMS_SAFEGUARD: %w", err)
	}
	importEvery, err := time.ParseDuration(getenv("IMPORT_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("IMPORT_INTERVAL: %w", err)
	}
	cleanupEvery, err := time.ParseDuration(getenv("CLEANUP_INTERVAL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("CLEANUP_INTERVAL: %w", err)
	}

	cfg := &Config{
		DatabaseURL: mustEnv("DATABASE_URL"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Location:    loc,

		CourseID:        courseID,
		UserFields:      parseList(getenv("SMS_USER_FIELDS", "room,year,gender,ethnicity,dob,school")),
		GenderOptions:   parseList(getenv("SMS_GENDER_OPTIONS", "Male,Female,Not Specified")),
		Safeguard:       safeguard,
		ImportInterval:  importEvery,
		CleanupInterval: cleanupEvery,

		BotToken:     os.Getenv("BOT_TOKEN"),
		AdminChatIDs: adminIDs,
		NotifyErrors: parseList(getenv("NOTIFY_ERRORS", "lognodata,lognogroups,logerrorsync")),
	}
	return cfg, nil
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
