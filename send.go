package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/khabaroff/webhook-inbox/src/config"
	"github.com/khabaroff/webhook-inbox/src/handlers"
	"github.com/khabaroff/webhook-inbox/src/services"
)

const sendUsage = "usage: webhook-inbox send <provider> <payload.json>"

// runSend signs a payload file with the provider secret and posts it to the
// running server, for manual end-to-end checks
func runSend(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, sendUsage)
		return 2
	}
	provider, path := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	secret, ok := cfg.ProviderSecrets.Secret(provider)
	if !ok {
		fmt.Fprintf(os.Stderr, "no secret configured for provider %q (set WEBHOOK_SECRET_%s)\n",
			provider, strings.ToUpper(provider))
		return 1
	}

	body, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read payload: %v\n", err)
		return 1
	}

	status, response, err := postSigned(&http.Client{Timeout: 10 * time.Second}, cfg.ServerURL, provider, secret, body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		return 1
	}

	fmt.Printf("%d %s\n", status, strings.TrimSpace(string(response)))
	if status >= 300 {
		return 1
	}
	return 0
}

func postSigned(client *http.Client, serverURL, provider, secret string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(serverURL, "/") + "/webhooks/" + provider

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, services.Sign(secret, body))

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	response, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, response, nil
}
