package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"
	"github.com/malivvan/pcscctl/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type statusErr uint32

func (e statusErr) Error() string      { return "card said no" }
func (e statusErr) StatusCode() uint32 { return uint32(e) }

func loadConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	v, err := config.Decode(strings.NewReader(doc), config.FormatJSON)
	require.NoError(t, err)
	cfg, err := config.Parse(v, 0)
	require.NoError(t, err)
	return cfg
}

func bufferLogger() (*clog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := clog.New(&buf)
	l.SetLevel(clog.DebugLevel)
	return l, &buf
}

func TestSelects(t *testing.T) {
	for _, group := range []int{1, 2, 3} {
		assert.True(t, Selects(group, -3), "group %d tag -3", group)
	}
	assert.False(t, Selects(4, -3))

	assert.True(t, Selects(3, 3))
	for _, group := range []int{1, 2, 4} {
		assert.False(t, Selects(group, 3), "group %d tag 3", group)
	}
	assert.True(t, Selects(0, 0))
}

func TestExecuteRead(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "keys": {"uid": "k1", "value": "secret"},
		"cmds": {"uid": "rd", "action": "read", "sec": 1, "blk": 2, "len": 4, "key": "k1"}}`)
	cmd, err := cfg.Lookup("rd")
	require.NoError(t, err)
	key, err := cfg.Keys.Lookup("k1")
	require.NoError(t, err)

	tr := &mockTransport{}
	tr.On("ReadBlock", mock.Anything, "rd", uint8(1), uint8(2), mock.MatchedBy(func(b []byte) bool { return len(b) == 6 }), key).
		Run(func(args mock.Arguments) {
			copy(args.Get(4).([]byte), []byte{1, 2, 3, 4, 0x90, 0x00})
		}).
		Return(6, nil).Once()

	data, err := Execute(context.Background(), tr, cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 0x90, 0x00}, data)
	tr.AssertExpectations(t)
}

func TestExecuteUUID(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "cmds": {"uid": "id", "action": "uuid"}}`)
	cmd, err := cfg.Lookup("id")
	require.NoError(t, err)

	tr := &mockTransport{}
	tr.On("ReadUID", mock.Anything, "id", mock.MatchedBy(func(b []byte) bool { return len(b) == 10 })).
		Run(func(args mock.Arguments) {
			copy(args.Get(2).([]byte), []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x90, 0x00})
		}).
		Return(6, nil).Once()

	data, err := Execute(context.Background(), tr, cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x90, 0x00}, data)
	tr.AssertExpectations(t)
}

func TestExecuteTrailer(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r",
		"keys": [{"uid": "a", "value": "AAAAAA"}, {"uid": "b", "value": "BBBBBB"}],
		"cmds": {"uid": "lock", "action": "trailer", "sec": 2, "blk": 3, "key": "a",
			"trailer": {"keyA": "a", "keyB": "b", "acls": ["0xFF", "0x07", "0x80", "0x69"]}}}`)
	cmd, err := cfg.Lookup("lock")
	require.NoError(t, err)

	tr := &mockTransport{}
	tr.On("WriteTrailer", mock.Anything, "lock", uint8(2), uint8(3), cmd.Key, cmd.Trailer).Return(nil).Once()

	_, err = Execute(context.Background(), tr, cmd, nil)
	require.NoError(t, err)
	tr.AssertExpectations(t)
}

func TestExecuteWriteOverride(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "cmds": [
		{"uid": "w8", "action": "write", "blk": 4, "len": 8, "data": "default"},
		{"uid": "wn", "action": "write", "blk": 5}
	]}`)
	w8, err := cfg.Lookup("w8")
	require.NoError(t, err)
	wn, err := cfg.Lookup("wn")
	require.NoError(t, err)

	for _, tc := range []struct {
		name     string
		cmd      *config.Command
		override []byte
		want     []byte
	}{
		{"configured data", w8, nil, []byte("default\x00")},
		{"override", w8, []byte("ABCDEFGH"), []byte("ABCDEFGH")},
		{"stop at zero", w8, []byte{'A', 'B', 0, 'C', 'D', 'E', 'F', 'G'}, []byte{'A', 'B', 0, 0, 0, 0, 0, 0}},
		{"short override", w8, []byte("AB"), []byte{'A', 'B', 0, 0, 0, 0, 0, 0}},
		{"long override", w8, []byte("ABCDEFGHIJ"), []byte("ABCDEFGH")},
		{"undeclared length", wn, []byte("xyz"), []byte("xyz")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr := &mockTransport{}
			tr.On("WriteBlock", mock.Anything, tc.cmd.UID, uint8(0), tc.cmd.Block, tc.want, (*config.Key)(nil)).Return(nil).Once()
			_, err := Execute(context.Background(), tr, tc.cmd, tc.override)
			require.NoError(t, err)
			tr.AssertExpectations(t)
		})
	}
}

func TestExecuteMissingWriteData(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "cmds": {"uid": "w", "action": "write", "blk": 4, "len": 16}}`)
	cmd, err := cfg.Lookup("w")
	require.NoError(t, err)

	tr := &mockTransport{}
	_, err = Execute(context.Background(), tr, cmd, nil)
	assert.ErrorIs(t, err, ErrMissingWriteData)
	tr.AssertNotCalled(t, "WriteBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteDeviceError(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "cmds": {"uid": "w", "action": "write", "blk": 4, "data": "x"}}`)
	cmd, err := cfg.Lookup("w")
	require.NoError(t, err)

	cause := statusErr(0x6982)
	tr := &mockTransport{}
	tr.On("WriteBlock", mock.Anything, "w", uint8(0), uint8(4), []byte("x"), (*config.Key)(nil)).Return(cause).Once()

	_, err = Execute(context.Background(), tr, cmd, nil)
	var de *DeviceError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "write", de.Op)
	assert.Equal(t, "w", de.Command)
	assert.Equal(t, uint32(0x6982), de.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "card said no")
}

func TestRunGroupWrite(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "keys": {"uid": "k1", "value": "secret1"}, "cmds": [
		{"uid": "w", "action": "write", "sec": 0, "blk": 4, "key": "k1", "data": "hello", "group": 7},
		{"uid": "other", "action": "uuid", "group": 8}
	]}`)
	key, err := cfg.Keys.Lookup("k1")
	require.NoError(t, err)
	log, _ := bufferLogger()

	tr := &mockTransport{}
	tr.On("WriteBlock", mock.Anything, "w", uint8(0), uint8(4), []byte("hello"), key).Return(nil).Once()

	res, err := RunGroup(context.Background(), tr, cfg.Commands, Options{Group: 7, Logger: log})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Skipped)
	assert.NotEmpty(t, res.ID)
	tr.AssertExpectations(t)
	tr.AssertNumberOfCalls(t, "WriteBlock", 1)
	tr.AssertNotCalled(t, "ReadUID", mock.Anything, mock.Anything, mock.Anything)
}

const twoWrites = `{"reader": "r", "cmds": [
	{"uid": "first", "action": "write", "blk": 4, "data": "one", "group": 1},
	{"uid": "second", "action": "write", "blk": 5, "data": "two", "group": 1}
]}`

func TestRunGroupForced(t *testing.T) {
	cfg := loadConfig(t, twoWrites)
	log, _ := bufferLogger()

	tr := &mockTransport{}
	tr.On("WriteBlock", mock.Anything, "first", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("auth failed")).Once()
	tr.On("WriteBlock", mock.Anything, "second", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	res, err := RunGroup(context.Background(), tr, cfg.Commands, Options{Group: 1, Forced: true, Logger: log})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "first", res.Failures[0].Command.UID)
	tr.AssertExpectations(t)
}

func TestRunGroupAbort(t *testing.T) {
	cfg := loadConfig(t, twoWrites)
	log, _ := bufferLogger()

	tr := &mockTransport{}
	tr.On("WriteBlock", mock.Anything, "first", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("auth failed")).Once()

	res, err := RunGroup(context.Background(), tr, cfg.Commands, Options{Group: 1, Logger: log})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cmd=first")
	var de *DeviceError
	assert.ErrorAs(t, err, &de)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 1, res.Selected)
	tr.AssertNumberOfCalls(t, "WriteBlock", 1)
}

func TestRunGroupVerboseSkips(t *testing.T) {
	cfg := loadConfig(t, `{"reader": "r", "cmds": [
		{"uid": "mine", "action": "uuid", "group": 2},
		{"uid": "theirs", "action": "uuid", "group": 5}
	]}`)
	tr := &mockTransport{}
	tr.On("ReadUID", mock.Anything, "mine", mock.Anything).Return(6, nil).Once()

	log, buf := bufferLogger()
	_, err := RunGroup(context.Background(), tr, cfg.Commands, Options{Group: 2, Verbose: true, Logger: log})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "theirs")

	log, buf = bufferLogger()
	log.SetLevel(clog.InfoLevel)
	tr.On("ReadUID", mock.Anything, "mine", mock.Anything).Return(6, nil).Once()
	_, err = RunGroup(context.Background(), tr, cfg.Commands, Options{Group: 2, Logger: log})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "theirs")
}

func TestRunGroupCancelled(t *testing.T) {
	cfg := loadConfig(t, twoWrites)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &mockTransport{}
	res, err := RunGroup(ctx, tr, cfg.Commands, Options{Group: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Zero(t, res.Selected)
}

func TestMonitor(t *testing.T) {
	cfg := loadConfig(t, twoWrites)
	log, buf := bufferLogger()

	tr := &mockTransport{}
	tr.On("WriteBlock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	m := &Monitor{Reader: "r", Transport: tr, Table: cfg.Commands, Options: Options{Group: 1, Logger: log}}
	w := &fakeWatcher{events: []bool{true, false, true}}
	require.NoError(t, m.Watch(context.Background(), w))
	tr.AssertNumberOfCalls(t, "WriteBlock", 4)
	assert.Contains(t, buf.String(), "card removed")
}

func TestMonitorStopsOnAbort(t *testing.T) {
	cfg := loadConfig(t, twoWrites)
	log, _ := bufferLogger()

	tr := &mockTransport{}
	tr.On("WriteBlock", mock.Anything, "first", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("removed too early"))

	m := &Monitor{Reader: "r", Transport: tr, Table: cfg.Commands, Options: Options{Group: 1, Logger: log}}
	w := &fakeWatcher{events: []bool{true, true}}
	err := m.Watch(context.Background(), w)
	require.Error(t, err)
	require.Len(t, w.errs, 1)
	tr.AssertNumberOfCalls(t, "WriteBlock", 1)
}
