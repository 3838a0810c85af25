package panel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mlindqvist/groundwork/internal/api"
	"github.com/mlindqvist/groundwork/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type viewMsg api.ViewResponse

type commandResultMsg struct {
	name string
	err  error
}

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the SSE /v1/events endpoint and feeds events
// into ch. Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(apiURL, apiKey string, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{}
		req, err := http.NewRequest("GET", apiURL+"/v1/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var current struct {
			id   int64
			typ  string
			data string
		}

		for scanner.Scan() {
			line := scanner.Text()

			if line == "" {
				if current.data != "" {
					ch <- events.Event{
						ID:   current.id,
						Type: current.typ,
						At:   time.Now(),
						Data: []byte(current.data),
					}
					current.id, current.typ, current.data = 0, "", ""
				}
				continue
			}

			if strings.HasPrefix(line, "id: ") {
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					current.id = id
				}
			} else if strings.HasPrefix(line, "event: ") {
				current.typ = line[7:]
			} else if strings.HasPrefix(line, "data: ") {
				current.data = line[6:]
			}
		}

		return sseDisconnectedMsg{}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchView queries /v1/view for the current workspace snapshot.
func fetchView(apiURL, apiKey, project string) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest("GET", apiURL+"/v1/view?project="+project, nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return errMsg(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("view fetch failed: %s", resp.Status))
		}

		var v api.ViewResponse
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return errMsg(err)
		}
		return viewMsg(v)
	}
}

// postCommand submits one command to /v1/commands.
func postCommand(apiURL, apiKey, name string, payload any) tea.Cmd {
	return func() tea.Msg {
		body, err := json.Marshal(api.CommandRequest{Name: name, Payload: mustRaw(payload)})
		if err != nil {
			return commandResultMsg{name: name, err: err}
		}

		client := &http.Client{Timeout: 5 * time.Second}
		req, err := http.NewRequest("POST", apiURL+"/v1/commands", bytes.NewReader(body))
		if err != nil {
			return commandResultMsg{name: name, err: err}
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return commandResultMsg{name: name, err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			var apiErr struct {
				Error string `json:"error"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&apiErr)
			if apiErr.Error == "" {
				apiErr.Error = resp.Status
			}
			return commandResultMsg{name: name, err: fmt.Errorf("%s", apiErr.Error)}
		}
		return commandResultMsg{name: name}
	}
}

func mustRaw(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return b
}
