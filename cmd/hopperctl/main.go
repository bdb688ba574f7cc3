// Command hopperctl is the CLI client for hopperd: it submits utterances to
// the Dispatcher's ingress API and renders the answer, either as a single
// one-shot request or as an interactive REPL.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hopper-project/core/pkg/cli"
)

func main() {
	addr := flag.String("addr", envOr("HOPPER_ADDR", "http://127.0.0.1:8787"), "hopperd listen address")
	token := flag.String("token", os.Getenv("HOPPER_TOKEN"), "bearer token (omit when auth is disabled)")
	userID := flag.String("user", envOr("HOPPER_USER", "local"), "principal to submit utterances as")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Parse()

	out := cli.New()
	client := &apiClient{
		baseURL: strings.TrimRight(*addr, "/"),
		token:   *token,
		http:    &http.Client{Timeout: *timeout},
	}

	utterance := strings.Join(flag.Args(), " ")
	if utterance != "" {
		runOnce(client, out, *userID, utterance)
		return
	}
	runREPL(client, out, *userID)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runOnce(client *apiClient, out *cli.Writer, userID, utterance string) {
	resp, err := client.command(userID, utterance)
	if err != nil {
		out.Error("%v", err)
		os.Exit(1)
	}
	render(out, resp)
}

func runREPL(client *apiClient, out *cli.Writer, userID string) {
	out.Info("hopperctl connected as %q — type a request, or \"exit\" to quit", userID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		resp, err := client.command(userID, line)
		if err != nil {
			out.Error("%v", err)
			continue
		}
		render(out, resp)
		out.Divider()
	}
}

func render(out *cli.Writer, resp *commandResponse) {
	if !resp.Success {
		out.Error("%s", resp.Message)
		return
	}
	out.Answer(resp.Message)
	if len(resp.ActionsTaken) > 0 {
		out.Dim("actions: %s", strings.Join(resp.ActionsTaken, ", "))
	}
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

type commandRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id"`
}

type commandResponse struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	ActionsTaken []string `json:"actions_taken"`
}

type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (c *apiClient) command(userID, text string) (*commandResponse, error) {
	body, err := json.Marshal(commandRequest{Text: text, UserID: userID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/command", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hopperd unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Kind)
		}
		return nil, fmt.Errorf("hopperd returned %d", resp.StatusCode)
	}

	var out commandResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
