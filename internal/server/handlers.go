// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, stats, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// StatsResponse is the body of the /stats endpoint.
type StatsResponse struct {
	Clients  int    `json:"clients"`
	Waiting  int    `json:"waiting"`
	Sessions int    `json:"sessions"`
	Policy   string `json:"policy"`
}

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the HTTP connection, creates a Client
// with a fresh id and registers it with the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)
	if !s.hub.Register(client) {
		client.closeConnection()
	}
}

// StatsHandler reports connected clients and matchmaking state as JSON.
func (s *Server) StatsHandler(w http.ResponseWriter, _ *http.Request) {
	stats := s.hub.Switchboard().Stats()
	body := StatsResponse{
		Clients:  s.hub.ClientCount(),
		Waiting:  stats.Waiting,
		Sessions: stats.Sessions,
		Policy:   string(s.hub.Switchboard().Policy()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Error writing stats response: %v", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "gosignal server is running!")
}

// TestPageHandler serves an HTML page for exercising matchmaking and relay by
// hand from two browser tabs.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		logrus.Errorf("Error writing HTML response: %v", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>gosignal test page</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:disabled { background-color: #999; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>gosignal test page</h1>
    <div id="status" class="status disconnected">Disconnected</div>
    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
        <button id="readyButton" onclick="send({type: 'readyForCall'})" disabled>Ready for call</button>
        <button id="hangupButton" onclick="send({type: 'peerDisconnected'})" disabled>Hang up</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="blobInput" placeholder="Offer / answer text">
        <button onclick="relay('offer')">Send offer</button>
        <button onclick="relay('answer')">Send answer</button>
        <button onclick="relay('icecandidate')">Send candidate</button>
    </div>
    <div id="log"></div>

    <script>
        let ws = null;
        let partner = '';
        const logDiv = document.getElementById('log');
        const statusDiv = document.getElementById('status');

        function log(text) {
            const line = document.createElement('div');
            line.textContent = text;
            logDiv.appendChild(line);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function setConnected(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            document.getElementById('readyButton').disabled = !connected;
            document.getElementById('hangupButton').disabled = !connected;
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function send(msg) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(msg));
                log('> ' + JSON.stringify(msg));
            }
        }

        function relay(type) {
            const msg = {type: type, targetUserId: partner};
            msg[type === 'icecandidate' ? 'candidate' : type] = document.getElementById('blobInput').value;
            send(msg);
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { setConnected(true); };
            ws.onclose = function() { setConnected(false); partner = ''; ws = null; log('Connection closed'); };
            ws.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                if (msg.type === 'matched') {
                    partner = msg.userId;
                    log('Matched with ' + partner + (msg.role === 'caller' ? ' (you send the offer)' : ''));
                } else if (msg.type === 'peerDisconnected') {
                    partner = '';
                }
                log('< ' + event.data);
            };
        }
    </script>
</body>
</html>`
