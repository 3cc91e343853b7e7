package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelatedbus/database-management-system-development-IF3140-sub001/engine"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	eng, err := engine.New(engine.Config{SkipGA: true, Logger: quietLogger()})
	require.NoError(t, err)
	srv := New(Config{Address: "127.0.0.1:0", Logger: quietLogger()}, eng)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not shut down")
		}
	})

	var addr string
	require.Eventually(t, func() bool {
		if a := srv.Addr(); a != nil {
			addr = a.String()
			return true
		}
		return false
	}, time.Second, 10*time.Millisecond)
	return srv, addr
}

func query(t *testing.T, conn net.Conn, sql string) Response {
	t.Helper()
	require.NoError(t, WriteMessage(conn, Request{Query: sql}))
	resp, err := ReadMessage[Response](conn)
	require.NoError(t, err)
	return resp
}

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, Request{Query: "SELECT 1;"}))

	raw := buf.Bytes()
	length := binary.BigEndian.Uint32(raw[:4])
	assert.Equal(t, int(length), len(raw)-4, "4-byte big-endian length prefixes the JSON payload")

	req, err := ReadMessage[Request](&buf)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", req.Query)
}

func TestReadMessageRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], maxMessageBytes+1)
	buf.Write(header[:])
	_, err := ReadMessage[Request](&buf)
	assert.Error(t, err)
}

func TestServerExecutesStatements(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	resp := query(t, conn, "CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(50), age INTEGER);")
	require.True(t, resp.Success, resp.Message)

	resp = query(t, conn, "INSERT INTO users (id, name, age) VALUES (1, 'Alice', 30);")
	require.True(t, resp.Success, resp.Message)

	resp = query(t, conn, "SELECT name FROM users WHERE age >= 30;")
	require.True(t, resp.Success, resp.Message)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Alice", resp.Data[0]["name"])
}

func TestServerSurfacesErrorsAsResponses(t *testing.T) {
	_, addr := startTestServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	resp := query(t, conn, "SELEC nope;")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
	assert.Nil(t, resp.Data)
}

func TestParallelSessions(t *testing.T) {
	_, addr := startTestServer(t)

	setup, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	require.True(t, query(t, setup, "CREATE TABLE counters (id INTEGER PRIMARY KEY, n INTEGER);").Success)
	require.True(t, query(t, setup, "INSERT INTO counters (id, n) VALUES (1, 0);").Success)
	setup.Close()

	done := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		go func() {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				done <- false
				return
			}
			defer conn.Close()
			if err := WriteMessage(conn, Request{Query: "SELECT n FROM counters WHERE id = 1;"}); err != nil {
				done <- false
				return
			}
			resp, err := ReadMessage[Response](conn)
			done <- err == nil && resp.Success
		}()
	}
	for i := 0; i < 4; i++ {
		select {
		case ok := <-done:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("session hung")
		}
	}
}
