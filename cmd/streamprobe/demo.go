package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/streamprobe/browser"
	"github.com/hazyhaar/streamprobe/probe"
)

// demoPage simulates a streaming chat: typing a message and clicking
// Send appends the canned answer into #response-box a few characters at
// a time, the way a token-streaming backend renders.
const demoPage = `<!DOCTYPE html>
<html>
<head>
    <title>Streaming Chat Demo</title>
    <style>
        body { font-family: Arial, sans-serif; padding: 20px; background: #1a1a2e; color: #eee; }
        #chat-container { max-width: 600px; margin: 0 auto; }
        #input-area { display: flex; gap: 10px; margin-bottom: 20px; }
        #user-input { flex: 1; padding: 10px; border-radius: 5px; border: none; }
        #send-btn { padding: 10px 20px; background: #4a90d9; color: white; border: none; border-radius: 5px; cursor: pointer; }
        #response-box { background: #16213e; padding: 20px; border-radius: 10px; min-height: 100px; white-space: pre-wrap; }
    </style>
</head>
<body>
    <div id="chat-container">
        <h1>Streaming Chat Demo</h1>
        <div id="input-area">
            <input type="text" id="user-input" placeholder="Type a message...">
            <button id="send-btn">Send</button>
        </div>
        <div id="response-box"></div>
    </div>
    <script>
        const responses = {
            'hello': 'Hello! How can I assist you today? I am a helpful AI assistant ready to answer your questions.',
            'hi': 'Hi there! Great to meet you. How may I help you?',
            'default': 'Thank you for your message. I understand you said: "{input}". How can I help you further?'
        };

        function simulateStreaming(text, element) {
            element.textContent = '';
            let index = 0;
            function addChunk() {
                if (index < text.length) {
                    const chunkSize = Math.floor(Math.random() * 3) + 1;
                    element.textContent += text.slice(index, index + chunkSize);
                    index += chunkSize;
                    const delay = Math.random() * 50 + 20;
                    setTimeout(addChunk, delay);
                }
            }
            addChunk();
        }

        document.getElementById('send-btn').addEventListener('click', function() {
            const input = document.getElementById('user-input').value.toLowerCase().trim();
            const box = document.getElementById('response-box');
            const response = responses[input] || responses['default'].replace('{input}', input);
            simulateStreaming(response, box);
        });

        document.getElementById('user-input').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                document.getElementById('send-btn').click();
            }
        });
    </script>
</body>
</html>`

// runDemo serves the simulated chat page locally and runs a full check
// against it: arm, send "Hello", wait for the stream to settle, then
// report latency and similarity against the expected greeting.
func runDemo(ctx context.Context, logger *slog.Logger, cfg *probe.Config) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("demo: listen: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, demoPage)
	})

	srv := &http.Server{Handler: r}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	pageURL := "http://" + ln.Addr().String() + "/"
	logger.Info("streamprobe: demo page up", "url", pageURL)

	p, err := probe.New(cfg, probe.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()

	session, err := p.OpenPage(ctx, pageURL)
	if err != nil {
		return err
	}
	defer session.Close()

	res, err := p.CheckResponse(ctx, session, probe.CheckSpec{
		Response: browser.ID("response-box"),
		Prompt:   "Hello",
		Expected: "Hello, how can I help you today?",
		MinScore: 0.5,
		Silence:  300 * time.Millisecond,
		Overall:  10 * time.Second,
		Trigger: func(ctx context.Context, s *probe.Session) error {
			if err := s.Tab.Type(ctx, browser.ID("user-input"), "Hello"); err != nil {
				return err
			}
			return s.Tab.Click(ctx, browser.ID("send-btn"))
		},
	})
	if err != nil {
		return err
	}

	fmt.Println("=== demo results ===")
	fmt.Printf("response:    %s\n", res.Response)
	if res.Metrics.Observed {
		fmt.Printf("ttft:        %s\n", fmtDuration(res.Metrics.TTFT))
		fmt.Printf("total:       %s\n", fmtDuration(res.Metrics.Total))
	} else {
		fmt.Println("ttft:        n/a (no mutations observed)")
	}
	fmt.Printf("mutations:   %d\n", res.Metrics.TokenCount)
	fmt.Printf("score:       %.2f (threshold %.2f)\n", res.Score, res.MinScore)
	if res.Passed {
		fmt.Println("verdict:     PASS")
	} else {
		fmt.Println("verdict:     FAIL")
	}
	return nil
}
