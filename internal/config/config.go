/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/go-playground/validator/v10"
)

type Config struct {
    AppEnv   string
    HTTPAddr string

    DBDSN string

    JiraBaseURL  string `validate:"required,url"`
    JiraEmail    string
    JiraAPIToken string
    JiraPAT      string

    Projects     []string `validate:"required,min=1,dive,required"`
    SinceDays    int      `validate:"gt=0"`
    DoneStatuses []string

    OutputDir        string `validate:"required"`
    IncludeChangelog bool

    ExtractCron string
    HTTPTimeout time.Duration
    MaxRetries  int
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func boolenv(key string, def bool) bool {
    v := strings.TrimSpace(os.Getenv(key))
    if v == "" { return def }
    b, err := strconv.ParseBool(v)
    if err != nil { return def }
    return b
}

func parseStrings(csv string) []string {
    if csv == "" { return nil }
    parts := strings.Split(csv, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        out = append(out, p)
    }
    return out
}

func Load() Config {
    return Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        HTTPAddr: getenv("HTTP_ADDR", ":8080"),

        DBDSN: getenv("DB_DSN", ""),

        JiraBaseURL:  strings.TrimRight(getenv("JIRA_BASE_URL", ""), "/"),
        JiraEmail:    getenv("JIRA_EMAIL", ""),
        JiraAPIToken: getenv("JIRA_API_TOKEN", ""),
        JiraPAT:      getenv("JIRA_PAT", ""),

        Projects:     parseStrings(getenv("JIRA_PROJECTS", "")),
        SinceDays:    atoi("SINCE_DAYS", 30),
        DoneStatuses: parseStrings(getenv("DONE_STATUSES", "Done,Closed,Resolved")),

        OutputDir:        getenv("OUTPUT_DIR", "./out"),
        IncludeChangelog: boolenv("INCLUDE_CHANGELOG", true),

        ExtractCron: getenv("EXTRACT_CRON", "0 6 * * MON"),
        HTTPTimeout: dur("HTTP_TIMEOUT", 30*time.Second),
        MaxRetries:  atoi("MAX_RETRIES", 5),
    }
}

// Validate checks the resolved configuration before any network call is
// made. Credential material is checked for presence only; values are never
// echoed back in the error text.
func (c Config) Validate() error {
    if c.JiraPAT == "" && (c.JiraEmail == "" || c.JiraAPIToken == "") {
        return fmt.Errorf("config: either JIRA_PAT or JIRA_EMAIL+JIRA_API_TOKEN must be set")
    }
    v := validator.New()
    if err := v.Struct(c); err != nil {
        if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
            e := errs[0]
            return fmt.Errorf("config: field %s failed rule %q", e.Field(), e.Tag())
        }
        return fmt.Errorf("config: %w", err)
    }
    return nil
}
