// Licensed to SlideScope under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. SlideScope licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/slidescope/core/api/config"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/services"
	"github.com/slidescope/core/core/apikeys"
	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/timestamper"
)

func makeTestHandler() (*WSHandler, *httptest.Server) {
	svcs := &services.APIServices{
		Log:         &logger.NullLogger{},
		TimeStamper: &timestamper.UnixTimeNowStamper{},
	}

	m := MakeMelody(config.APIConfig{WSMaxMessageSize: 1024})
	wsHandler := MakeWSHandler(m, svcs)

	m.HandleConnect(wsHandler.HandleConnect)
	m.HandleDisconnect(wsHandler.HandleDisconnect)
	m.HandleMessage(wsHandler.HandleMessage)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HandleRequest(w, r)
	}))

	return wsHandler, server
}

func getConnectToken(t *testing.T, wsHandler *WSHandler) string {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws-connect", nil)

	err := wsHandler.HandleBeginWSConnection(handlers.ApiHandlerGenericParams{
		Svcs:     wsHandler.svcs,
		UserInfo: apikeys.UserInfo{Name: "key-operator", Role: "operator"},
		Writer:   recorder,
		Request:  req,
	})
	if err != nil {
		t.Fatalf("HandleBeginWSConnection failed: %v", err)
	}

	var resp struct {
		ConnToken string `json:"connToken"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode connect response: %v", err)
	}
	if len(resp.ConnToken) == 0 {
		t.Fatal("No connect token returned")
	}
	return resp.ConnToken
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Websocket dial failed: %v", err)
	}
	return conn
}

func TestBroadcastFlattensPayload(t *testing.T) {
	wsHandler, server := makeTestHandler()
	defer server.Close()

	token := getConnectToken(t, wsHandler)
	conn := dial(t, server, token)
	defer conn.Close()

	// Session registration happens server-side just after the upgrade
	time.Sleep(100 * time.Millisecond)

	wsHandler.Broadcast("acquisition-update", map[string]interface{}{
		"id":        "acq-123",
		"state":     "running",
		"tilesDone": 14,
	})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("Broadcast was not JSON: %v", err)
	}

	if got["type"] != "acquisition-update" {
		t.Errorf("Broadcast type got %v", got["type"])
	}
	if got["id"] != "acq-123" || got["state"] != "running" {
		t.Errorf("Payload fields not flattened into message: %v", string(msg))
	}
	if got["tilesDone"] != float64(14) {
		t.Errorf("tilesDone got %v", got["tilesDone"])
	}
}

func TestPingPong(t *testing.T) {
	wsHandler, server := makeTestHandler()
	defer server.Close()

	token := getConnectToken(t, wsHandler)
	conn := dial(t, server, token)
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read pong: %v", err)
	}
	if string(msg) != `{"type":"pong"}` {
		t.Errorf("Expected pong, got %v", string(msg))
	}
}

func TestConnectTokenRequired(t *testing.T) {
	_, server := makeTestHandler()
	defer server.Close()

	// No token at all - the server accepts the upgrade then immediately
	// closes the session
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected session to be closed without a token")
	}

	// A made-up token is rejected the same way
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL+"/?token=not-a-real-token", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn2.Close()

	conn2.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn2.ReadMessage(); err == nil {
		t.Error("Expected session to be closed for an unknown token")
	}
}

func TestMakeMelodyAppliesConfig(t *testing.T) {
	m := MakeMelody(config.APIConfig{
		WSWriteWaitMs:       2000,
		WSPongWaitMs:        30000,
		WSPingPeriodMs:      20000,
		WSMaxMessageSize:    40000,
		WSMessageBufferSize: 64,
	})

	if m.Config.WriteWait != 2*time.Second {
		t.Errorf("WriteWait got %v", m.Config.WriteWait)
	}
	if m.Config.PongWait != 30*time.Second {
		t.Errorf("PongWait got %v", m.Config.PongWait)
	}
	if m.Config.PingPeriod != 20*time.Second {
		t.Errorf("PingPeriod got %v", m.Config.PingPeriod)
	}
	if m.Config.MaxMessageSize != 40000 {
		t.Errorf("MaxMessageSize got %v", m.Config.MaxMessageSize)
	}
	if m.Config.MessageBufferSize != 64 {
		t.Errorf("MessageBufferSize got %v", m.Config.MessageBufferSize)
	}

	// Unset fields keep melody's defaults
	def := MakeMelody(config.APIConfig{})
	if def.Config.PongWait <= 0 || def.Config.MaxMessageSize <= 0 {
		t.Errorf("Defaults not preserved: %+v", def.Config)
	}
}

func TestConnectTokensConcurrent(t *testing.T) {
	// Tokens get issued on HTTP goroutines while melody consumes them on its
	// own connect goroutine. Hammer issuance in the background while the main
	// goroutine connects - run under -race this trips if the token map loses
	// its locking
	wsHandler, server := makeTestHandler()
	defer server.Close()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				recorder := httptest.NewRecorder()
				req := httptest.NewRequest("GET", "/ws-connect", nil)
				wsHandler.HandleBeginWSConnection(handlers.ApiHandlerGenericParams{
					Svcs:     wsHandler.svcs,
					UserInfo: apikeys.UserInfo{Name: "key-operator", Role: "operator"},
					Writer:   recorder,
					Request:  req,
				})
			}
		}()
	}

	for i := 0; i < 10; i++ {
		token := getConnectToken(t, wsHandler)
		conn := dial(t, server, token)
		conn.Close()
	}

	close(done)
	wg.Wait()
}

func TestConnectTokenSingleUse(t *testing.T) {
	wsHandler, server := makeTestHandler()
	defer server.Close()

	token := getConnectToken(t, wsHandler)
	conn := dial(t, server, token)
	defer conn.Close()

	// Give the first connect a moment to consume the token
	time.Sleep(100 * time.Millisecond)

	conn2 := dial(t, server, token)
	defer conn2.Close()

	conn2.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn2.ReadMessage(); err == nil {
		t.Error("Expected second use of a connect token to be rejected")
	}
}
