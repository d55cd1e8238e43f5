// Package scard talks to MIFARE Classic cards through a PC/SC reader.
//
// Session implements the runner Transport and Watcher interfaces on top of
// the pcsc-lite / WinSCard bindings of github.com/ebfe/scard, using the
// PC/SC part 3 pseudo APDUs understood by contactless readers.
package scard

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	pcsc "github.com/ebfe/scard"
)

type ATR []byte

// Return string form of ATR.
func (atr ATR) String() string {
	var buffer bytes.Buffer
	for _, b := range atr {
		buffer.WriteString(fmt.Sprintf("%02x", b))
	}
	return buffer.String()
}

// APDU represents an application data unit sent to a smart-card.
type APDU struct {
	Cla  uint8  // Class
	Ins  uint8  // Instruction
	P1   uint8  // Parameter 1
	P2   uint8  // Parameter 2
	Data []byte // Command data
	Len  uint8  // Expected response length
	Elf  bool   // Use extended length fields
}

// Bytes encodes the APDU. Le is sent when no data is present or a response
// length is expected.
func (apdu APDU) Bytes() []byte {
	cmd := []byte{apdu.Cla, apdu.Ins, apdu.P1, apdu.P2}
	if len(apdu.Data) > 0 {
		if apdu.Elf {
			cmd = append(cmd, 0)
			cmd = binary.BigEndian.AppendUint16(cmd, uint16(len(apdu.Data)))
		} else {
			cmd = append(cmd, uint8(len(apdu.Data)))
		}
		cmd = append(cmd, apdu.Data...)
	}
	if len(apdu.Data) == 0 || apdu.Len > 0 {
		cmd = append(cmd, apdu.Len)
	}
	return cmd
}

var (
	ErrRespTooShort                 = errors.New("response too short")
	ErrOperationFailed              = errors.New("operation failed")
	ErrUnspecifiedWarning           = errors.New("no information given (warning)")
	ErrUnspecifiedError             = errors.New("no information given (error)")
	ErrWrongLength                  = errors.New("wrong length; no further indication")
	ErrUnsupportedFunction          = errors.New("function in CLA not supported")
	ErrCommandNotAllowed            = errors.New("command not allowed")
	ErrWrongParams                  = errors.New("wrong parameters P1-P2")
	ErrUnsupportedInstruction       = errors.New("instruction code not supported or invalid")
	ErrUnsupportedClass             = errors.New("class not supported")
	ErrNoDiag                       = errors.New("no precise diagnosis")
	ErrMemory                       = errors.New("memory failure")
	ErrCommandIncompatibleWithFile  = errors.New("command incompatible with file structure")
	ErrSecurityStatusNotSatisfied   = errors.New("security status not satisfied")
	ErrAuthenticationMethodBlocked  = errors.New("authentication method blocked")
	ErrReferenceDataNotUsable       = errors.New("reference data not usable")
	ErrConditionsOfUseNotSatisfied  = errors.New("conditions of use not satisfied")
	ErrCommandNotAllowedNoCurrentEF = errors.New("command not allowed (no current EF)")
	ErrIncorrectData                = errors.New("incorrect parameters in the command data field")
	ErrFunctionNotSupported         = errors.New("function not supported")
	ErrFileOrAppNotFound            = errors.New("file or application not found")
	ErrRecordNotFound               = errors.New("record not found")
	ErrIncorrectParams              = errors.New("incorrect parameters P1-P2")
	ErrReferenceNotFound            = errors.New("referenced data or reference data not found")
	ErrUnknownStatus                = errors.New("unknown status word")
)

var statusWords = map[[2]byte]error{
	{0x90, 0x00}: nil,
	{0x62, 0x00}: ErrUnspecifiedWarning,
	{0x63, 0x00}: ErrOperationFailed,
	{0x64, 0x00}: ErrUnspecifiedError,
	{0x65, 0x81}: ErrMemory,
	{0x67, 0x00}: ErrWrongLength,
	{0x68, 0x00}: ErrUnsupportedFunction,
	{0x69, 0x00}: ErrCommandNotAllowed,
	{0x69, 0x81}: ErrCommandIncompatibleWithFile,
	{0x69, 0x82}: ErrSecurityStatusNotSatisfied,
	{0x69, 0x83}: ErrAuthenticationMethodBlocked,
	{0x69, 0x84}: ErrReferenceDataNotUsable,
	{0x69, 0x85}: ErrConditionsOfUseNotSatisfied,
	{0x69, 0x86}: ErrCommandNotAllowedNoCurrentEF,
	{0x6A, 0x80}: ErrIncorrectData,
	{0x6A, 0x81}: ErrFunctionNotSupported,
	{0x6A, 0x82}: ErrFileOrAppNotFound,
	{0x6A, 0x83}: ErrRecordNotFound,
	{0x6A, 0x86}: ErrIncorrectParams,
	{0x6A, 0x88}: ErrReferenceNotFound,
	{0x6B, 0x00}: ErrWrongParams,
	{0x6D, 0x00}: ErrUnsupportedInstruction,
	{0x6E, 0x00}: ErrUnsupportedClass,
	{0x6F, 0x00}: ErrNoDiag,
}

// Error is a failure of a reader operation. Code holds either the card
// status word or the PC/SC return code.
type Error struct {
	Op   string
	Code uint32
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode exposes Code to callers that do not know this package.
func (e *Error) StatusCode() uint32 {
	return e.Code
}

func opErr(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	e = &Error{Op: op, Err: err}
	var code pcsc.Error
	if errors.As(err, &code) {
		e.Code = uint32(code)
	}
	return e
}

// checkStatus strips the trailing status word from resp.
func checkStatus(op string, resp []byte) ([]byte, error) {
	if len(resp) < 2 {
		return nil, &Error{Op: op, Err: ErrRespTooShort}
	}
	sw := [2]byte{resp[len(resp)-2], resp[len(resp)-1]}
	err, ok := statusWords[sw]
	if !ok {
		err = ErrUnknownStatus
	}
	if err != nil {
		return nil, &Error{Op: op, Code: uint32(binary.BigEndian.Uint16(sw[:])), Err: err}
	}
	return resp[:len(resp)-2], nil
}
