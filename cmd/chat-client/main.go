package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/jessevdk/go-flags"
)

// Options are interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Server   string `short:"s" long:"server" default:"http://localhost:8080" description:"API base URL"`
	Username string `short:"u" long:"username" required:"true" description:"account email"`
	Password string `short:"p" long:"password" env:"WHITE_FUSION_PASSWORD" required:"true" description:"account password"`
	ChatID   int64  `short:"c" long:"chat" description:"continue an existing chat instead of starting one"`
	Topic    string `long:"topic" default:"Terminal chat" description:"first message of a new chat, used for its title"`
	Model    string `short:"m" long:"model" default:"llama-3.3-70b-versatile" description:"model name"`
	Provider string `short:"P" long:"provider" default:"Groq" description:"Groq, TogetherAI, Gemini or White-Fusion"`
	Search   bool   `long:"search" description:"allow web search"`
	System   string `long:"system" description:"system prompt"`
}

type client struct {
	opts  *Options
	base  string
	token string
	http  *http.Client
}

type event struct {
	Type     string `json:"type"`
	ChatID   int64  `json:"chat_id"`
	Provider string `json:"provider"`
	Text     string `json:"text"`
}

func main() {
	opts := &Options{}
	if _, err := flags.NewParser(opts, flags.Default).Parse(); err != nil {
		os.Exit(1)
	}

	c := &client{opts: opts, base: strings.TrimRight(opts.Server, "/"), http: http.DefaultClient}
	if err := c.login(); err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	conn, err := c.dial()
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	go func() {
		for {
			var ev event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Println("Connection closed:", err)
				return
			}
			if ev.Type == "answer" {
				fmt.Printf("\n[%s #%d] %s\n> ", ev.Provider, ev.ChatID, ev.Text)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
		os.Exit(0)
	}()

	if opts.ChatID == 0 {
		id, title, err := c.newChat(opts.Topic)
		if err != nil {
			log.Fatalf("Failed to create chat: %v", err)
		}
		opts.ChatID = id
		fmt.Printf("Started chat #%d %q\n", id, title)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Enter prompts (type 'exit' to quit):")
	for {
		fmt.Print("> ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		text = strings.TrimSpace(text)
		if text == "exit" {
			return
		}
		if text == "" {
			continue
		}
		if err := c.ask(text); err != nil {
			log.Println("Ask failed:", err)
		}
	}
}

func (c *client) login() error {
	resp, err := c.http.PostForm(c.base+"/login", url.Values{
		"username": {c.opts.Username},
		"password": {c.opts.Password},
	})
	if err != nil {
		return err
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := decode(resp, &out); err != nil {
		return err
	}
	c.token = out.AccessToken
	return nil
}

func (c *client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	return conn, err
}

func (c *client) newChat(message string) (int64, string, error) {
	var out struct {
		ChatID int64  `json:"chat_id"`
		Title  string `json:"title"`
	}
	err := c.postJSON("/chat", map[string]any{"message": message}, &out)
	return out.ChatID, out.Title, err
}

// ask posts a prompt; the answer itself arrives over the websocket.
func (c *client) ask(message string) error {
	return c.postJSON(fmt.Sprintf("/chats/%d/ask", c.opts.ChatID), map[string]any{
		"model_name":     c.opts.Model,
		"model_provider": c.opts.Provider,
		"message":        message,
		"allow_search":   c.opts.Search,
		"system_prompt":  c.opts.System,
	}, nil)
}

func (c *client) postJSON(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
