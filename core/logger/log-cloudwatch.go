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

package logger

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatchlogs"
)

// CloudWatchLogger - sends logs to AWS CloudWatch in batches, echoing to stdout
// so local terminals still see what a deployed rig daemon is doing
type CloudWatchLogger struct {
	svc           *cloudwatchlogs.CloudWatchLogs
	logGroupName  string
	logStreamName string
	sequenceToken *string

	logLevel LogLevel

	mutex   sync.Mutex
	pending []*cloudwatchlogs.InputLogEvent

	stop chan struct{}
	done chan struct{}
}

// InitCloudWatchLogger - creates the log group (with retention) and stream if needed
// then starts a goroutine that flushes buffered lines every sendIntervalSec seconds
func InitCloudWatchLogger(sess *session.Session, logGroupName string, logStreamName string, logLevel LogLevel, retentionDays int64, sendIntervalSec int) (ILogger, error) {
	svc := cloudwatchlogs.New(sess)

	_, err := svc.CreateLogGroup(&cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroupName),
	})
	if err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create log group %v: %v", logGroupName, err)
	}

	// Not fatal if this fails, group may predate us with its own policy
	svc.PutRetentionPolicy(&cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(logGroupName),
		RetentionInDays: aws.Int64(retentionDays),
	})

	_, err = svc.CreateLogStream(&cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(logGroupName),
		LogStreamName: aws.String(logStreamName),
	})
	if err != nil && !isAlreadyExists(err) {
		return nil, fmt.Errorf("failed to create log stream %v: %v", logStreamName, err)
	}

	l := &CloudWatchLogger{
		svc:           svc,
		logGroupName:  logGroupName,
		logStreamName: logStreamName,
		logLevel:      logLevel,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	go l.sendLoop(time.Duration(sendIntervalSec) * time.Second)

	return l, nil
}

func isAlreadyExists(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == cloudwatchlogs.ErrCodeResourceAlreadyExistsException
	}
	return false
}

func (l *CloudWatchLogger) sendLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.flush()
		case <-l.stop:
			l.flush()
			close(l.done)
			return
		}
	}
}

func (l *CloudWatchLogger) flush() {
	l.mutex.Lock()
	events := l.pending
	l.pending = nil
	l.mutex.Unlock()

	if len(events) <= 0 {
		return
	}

	resp, err := l.svc.PutLogEvents(&cloudwatchlogs.PutLogEventsInput{
		LogEvents:     events,
		LogGroupName:  aws.String(l.logGroupName),
		LogStreamName: aws.String(l.logStreamName),
		SequenceToken: l.sequenceToken,
	})
	if err != nil {
		// Logs echo locally anyway, so just complain there and drop the batch
		log.Printf("CloudWatch PutLogEvents failed: %v", err)
		return
	}
	l.sequenceToken = resp.NextSequenceToken
}

func (l *CloudWatchLogger) Printf(level LogLevel, format string, a ...interface{}) {
	txt := logLevelPrefix[level] + ": " + fmt.Sprintf(format, a...)

	l.mutex.Lock()
	l.pending = append(l.pending, &cloudwatchlogs.InputLogEvent{
		Message:   aws.String(txt),
		Timestamp: aws.Int64(time.Now().UnixMilli()),
	})
	l.mutex.Unlock()

	// Also write to local stdout
	log.Println(txt)
}

func (l *CloudWatchLogger) Debugf(format string, a ...interface{}) {
	if l.logLevel <= LogDebug {
		l.Printf(LogDebug, format, a...)
	}
}
func (l *CloudWatchLogger) Infof(format string, a ...interface{}) {
	if l.logLevel <= LogInfo {
		l.Printf(LogInfo, format, a...)
	}
}
func (l *CloudWatchLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *CloudWatchLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}
func (l *CloudWatchLogger) GetLogLevel() LogLevel {
	return l.logLevel
}

// Close - flushes anything buffered and stops the send loop
func (l *CloudWatchLogger) Close() {
	close(l.stop)
	<-l.done
}
