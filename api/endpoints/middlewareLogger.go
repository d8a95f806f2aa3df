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

package endpoints

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/slidescope/core/api/services"
	"github.com/slidescope/core/core/logger"
)

// How many chars of request body to display in logs
const bodyTextReqLogLength = 200

// How many chars of resp body to display in logs
const bodyTextRespLogHeadLength = 600

// How many chars of resp body to display in logs
const bodyTextRespLogTailLength = 300

// If req/resp body is longer than the limits, we print this to show it was cut off
const logSnipIndicator = "\n    ---- >8 -------- >8 -------- >8 -------- >8 ----\n"

type LoggerMiddleware struct {
	*services.APIServices
}

func (h *LoggerMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Read the HTTP body. We can log it here if required, and then we pass it into the next in chain
		bodyBytes, err := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		fullReqBodyText := "REQ BODY ERROR"
		reqBodyText := fullReqBodyText

		if err == nil {
			fullReqBodyText = string(bodyBytes)
		}
		if h.Config.LogLevel == logger.LogDebug {
			// We write the whole request, and body to log...
			reqBodyText = fullReqBodyText
			// Display a part of the body
			if len(reqBodyText) > bodyTextReqLogLength {
				reqBodyText = reqBodyText[0:bodyTextReqLogLength] + logSnipIndicator
			}
		}

		// Create a multiwriter, so we can write to the http response AND store it so we can log it
		buf := new(bytes.Buffer)
		w2 := &responseWriterWithCopy{RealWriter: w, Body: buf, Status: 0}

		next.ServeHTTP(w2, r)

		// We only log if we're in debug log level OR we detected an error
		hadError := w2.Status != 0 && w2.Status != http.StatusOK && w2.Status != http.StatusNotModified
		if h.Config.LogLevel != logger.LogDebug && !hadError {
			return
		}

		respBodyTxt := string(buf.Bytes())
		if len(respBodyTxt) > bodyTextRespLogHeadLength+bodyTextRespLogTailLength {
			respBodyTxt = respBodyTxt[0:bodyTextRespLogHeadLength] +
				logSnipIndicator +
				respBodyTxt[len(respBodyTxt)-bodyTextRespLogTailLength:]
		}

		if hadError {
			msg := fmt.Sprintf("API returned %v for %v \"%v %v\", query params: %v. Response body: \"%v\"",
				w2.Status,
				r.Method,
				r.Host,
				r.URL,
				r.URL.Query(),
				respBodyTxt,
			)
			sentry.CaptureMessage(msg)

			h.Log.Errorf("%v %v (%v)\n  Request body: %v\n  Response body: %v", r.Method, r.URL, w2.StatusText(), reqBodyText, respBodyTxt)
			return
		}

		// Don't log requests to / as some load balancer seems to be doing this constantly, so we lose all other logs
		// in the sea of requests to /
		if r.URL.Path == "/" || r.URL.Path == "/metrics" {
			return
		}

		h.Log.Debugf("%v %v (%v)\n  Request body: %v\n  Response body: %v", r.Method, r.URL, w2.StatusText(), reqBodyText, respBodyTxt)
	})
}
