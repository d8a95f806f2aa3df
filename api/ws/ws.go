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

// Websocket push of acquisition state changes. Clients authenticate over
// HTTP (GET /ws-connect) to receive a short-lived connect token, then open
// the socket with that token as a query param. The socket itself is
// broadcast-only apart from a ping/pong keepalive.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/olahol/melody"
	"github.com/slidescope/core/api/config"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/services"
	"github.com/slidescope/core/core/apikeys"
	"github.com/slidescope/core/core/utils"
)

const connectTokenExpirySec = 10

type connectToken struct {
	expiryUnixSec int64
	userInfo      apikeys.UserInfo
}

type WSHandler struct {
	// Tokens are issued on the HTTP handler goroutines and consumed on
	// melody's connect goroutine, so the map needs the lock
	connectTokensLock sync.Mutex
	connectTokens     map[string]connectToken

	melody *melody.Melody
	svcs   *services.APIServices
}

func MakeWSHandler(m *melody.Melody, svcs *services.APIServices) *WSHandler {
	ws := WSHandler{
		connectTokens: map[string]connectToken{},
		melody:        m,
		svcs:          svcs,
	}
	return &ws
}

// Caller must hold connectTokensLock
func (ws *WSHandler) clearOldTokens() {
	nowSec := ws.svcs.TimeStamper.GetTimeNowSec()
	for token, usr := range ws.connectTokens {
		if usr.expiryUnixSec < nowSec {
			delete(ws.connectTokens, token)
		}
	}
}

type beginConnectionResponse struct {
	ConnToken string `json:"connToken"`
}

func (ws *WSHandler) HandleBeginWSConnection(params handlers.ApiHandlerGenericParams) error {
	// Generate a token that is valid for a short time
	token := utils.RandStringBytesMaskImpr(32)

	expirySec := ws.svcs.TimeStamper.GetTimeNowSec() + connectTokenExpirySec

	ws.connectTokensLock.Lock()

	// Clear out old ones, now is a good a time as any!
	ws.clearOldTokens()

	ws.connectTokens[token] = connectToken{expirySec, params.UserInfo}
	ws.connectTokensLock.Unlock()

	handlers.ToJSON(params.Writer, beginConnectionResponse{ConnToken: token})
	return nil
}

func (ws *WSHandler) HandleSocketCreation(params handlers.ApiHandlerGenericPublicParams) error {
	ws.melody.HandleRequest(params.Writer, params.Request)
	return nil
}

func (ws *WSHandler) HandleConnect(s *melody.Session) {
	// The initial GET websocket upgrade request lands here. We require a
	// token as a query param, which we validate against previous calls to
	// /ws-connect, and store the user it identified in the session
	var connectingUser apikeys.UserInfo

	queryParams := s.Request.URL.Query()
	token, ok := queryParams["token"]
	if !ok {
		s.CloseWithMsg([]byte("Missing token"))
		return
	}

	if len(token) != 1 {
		s.CloseWithMsg([]byte("Multiple tokens provided"))
		return
	}

	ws.connectTokensLock.Lock()
	conn, ok := ws.connectTokens[token[0]]
	if ok {
		// One-time use, taken out of the map whether expired or not
		delete(ws.connectTokens, token[0])
	}
	ws.connectTokensLock.Unlock()

	if !ok {
		s.CloseWithMsg([]byte("Invalid token"))
		return
	}

	if conn.expiryUnixSec < ws.svcs.TimeStamper.GetTimeNowSec() {
		s.CloseWithMsg([]byte("Expired token"))
		return
	}

	connectingUser = conn.userInfo

	// Store the connection info!
	s.Set("user", connectingUser)

	sessId := utils.RandStringBytesMaskImpr(32)
	s.Set("id", sessId)

	ws.svcs.Log.Infof("Connect user: %v, session: %v", connectingUser.Name, sessId)
}

func (ws *WSHandler) HandleDisconnect(s *melody.Session) {
	id := "?"
	if _id, ok := s.Get("id"); ok {
		if idStr, ok := _id.(string); ok {
			id = idStr
		}
	}

	ws.svcs.Log.Infof("Disconnect session: %v", id)
}

func (ws *WSHandler) HandleMessage(s *melody.Session, msg []byte) {
	// The socket is push-only, the one thing clients may send is a
	// keepalive ping
	var req struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		ws.svcs.Log.Errorf("HandleMessage: Error while decoding msg %v", err)
		return
	}

	if req.Type == "ping" {
		s.Write([]byte(`{"type":"pong"}`))
		return
	}

	ws.svcs.Log.Errorf("HandleMessage: unexpected message type %v", req.Type)
}

// Broadcast - sends a state change to every connected session. The payload's
// fields are flattened into the message alongside the type, so clients see
// {"type":"acquisition-update", "id":..., "state":...}
func (ws *WSHandler) Broadcast(msgType string, payload interface{}) {
	msg := map[string]interface{}{}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			ws.svcs.Log.Errorf("Broadcast: failed to encode %v payload: %v", msgType, err)
			return
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.svcs.Log.Errorf("Broadcast: %v payload must encode to a JSON object: %v", msgType, err)
			return
		}
	}

	msg["type"] = msgType

	out, err := json.Marshal(msg)
	if err != nil {
		ws.svcs.Log.Errorf("Broadcast: failed to encode %v message: %v", msgType, err)
		return
	}

	ws.melody.Broadcast(out)
}

// Unused here but melody wants a handler set to count errors
func (ws *WSHandler) HandleError(s *melody.Session, err error) {
	if err != nil && ws.svcs != nil {
		ws.svcs.Log.Debugf("Websocket session error: %v", err)
	}
}

var _ services.IPush = &WSHandler{}

// MakeMelody - melody instance configured from the API config. Zero config
// values keep melody's own defaults
func MakeMelody(cfg config.APIConfig) *melody.Melody {
	m := melody.New()
	if cfg.WSWriteWaitMs > 0 {
		m.Config.WriteWait = time.Duration(cfg.WSWriteWaitMs) * time.Millisecond
	}
	if cfg.WSPongWaitMs > 0 {
		m.Config.PongWait = time.Duration(cfg.WSPongWaitMs) * time.Millisecond
	}
	if cfg.WSPingPeriodMs > 0 {
		m.Config.PingPeriod = time.Duration(cfg.WSPingPeriodMs) * time.Millisecond
	}
	if cfg.WSMaxMessageSize > 0 {
		m.Config.MaxMessageSize = int64(cfg.WSMaxMessageSize)
	}
	if cfg.WSMessageBufferSize > 0 {
		m.Config.MessageBufferSize = int(cfg.WSMessageBufferSize)
	}
	return m
}
