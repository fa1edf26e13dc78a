// gryt-remoted is the reference remote authority daemon. It serves the
// REST API the sync engine reconciles against, holding all state in
// memory.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/EpykLab/gryt-ci/internal/remoted"
	"github.com/EpykLab/gryt-ci/pkg/logging"
)

func main() {
	addr := flag.String("addr", ":8475", "listen address")
	apiKeys := flag.String("api-keys", "", "comma-separated HMAC credentials as keyid=secret")
	users := flag.String("users", "", "comma-separated basic-auth credentials as user=password")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := logging.LevelInfo
	if *debug {
		level = logging.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logging.SetGlobal(logging.NewLogger(level))

	var auth *remoted.Auth
	keys := parseCredentials(*apiKeys)
	basic := parseCredentials(*users)
	if len(keys) > 0 || len(basic) > 0 {
		auth = remoted.NewAuth(keys, basic)
	} else {
		logging.Warn("no credentials configured, serving unauthenticated")
	}

	srv := remoted.NewServer(auth)
	logging.Info("gryt-remoted listening", map[string]any{"addr": *addr})
	if err := srv.Router().Run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "gryt-remoted: %v\n", err)
		os.Exit(1)
	}
}

func parseCredentials(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			fmt.Fprintf(os.Stderr, "gryt-remoted: invalid credential %q, want name=secret\n", pair)
			os.Exit(2)
		}
		out[key] = value
	}
	return out
}
