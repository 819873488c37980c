// Copyright 2020 - present Alex Dukhno
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package pgwire

import (
	"bufio"
	"context"
	"encoding/binary"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"

	"github.com/omofolarin/isomorphicdb/sql"
	"github.com/omofolarin/isomorphicdb/sql/parser"
	"github.com/omofolarin/isomorphicdb/util/log"
)

type messageType byte

// http://www.postgresql.org/docs/13/protocol-message-formats.html
const (
	serverMsgAuth            messageType = 'R'
	serverMsgBackendKeyData  messageType = 'K'
	serverMsgBindComplete    messageType = '2'
	serverMsgCloseComplete   messageType = '3'
	serverMsgCommandComplete messageType = 'C'
	serverMsgDataRow         messageType = 'D'
	serverMsgEmptyQuery      messageType = 'I'
	serverMsgErrorResponse   messageType = 'E'
	serverMsgNoData          messageType = 'n'
	serverMsgParameterDesc   messageType = 't'
	serverMsgParameterStatus messageType = 'S'
	serverMsgParseComplete   messageType = '1'
	serverMsgPortalSuspended messageType = 's'
	serverMsgReady           messageType = 'Z'
	serverMsgRowDescription  messageType = 'T'

	clientMsgBind        messageType = 'B'
	clientMsgClose       messageType = 'C'
	clientMsgDescribe    messageType = 'D'
	clientMsgExecute     messageType = 'E'
	clientMsgFlush       messageType = 'H'
	clientMsgParse       messageType = 'P'
	clientMsgSimpleQuery messageType = 'Q'
	clientMsgSync        messageType = 'S'
	clientMsgTerminate   messageType = 'X'
)

const (
	authOK int32 = 0

	formatText   int16 = 0
	formatBinary int16 = 1
)

// v3Conn drives the version 3 protocol on one connection: the simple
// query path and the Parse, Bind, Describe, Execute, Close, Sync
// extended path. After an extended-path error the session latches and
// messages are discarded until Sync.
type v3Conn struct {
	rd       *bufio.Reader
	wr       *bufio.Writer
	opts     map[string]string
	executor *sql.Executor
	session  *sql.Session
	readBuf  readBuffer
	writeBuf writeBuffer
}

func newV3Conn(conn net.Conn, data []byte, executor *sql.Executor) (*v3Conn, error) {
	c := &v3Conn{
		rd:       bufio.NewReader(conn),
		wr:       bufio.NewWriter(conn),
		opts:     map[string]string{},
		executor: executor,
		session:  executor.NewSession(),
	}
	if err := c.parseOptions(data); err != nil {
		return nil, err
	}
	return c, nil
}

// parseOptions decodes the key/value tail of the startup message.
func (c *v3Conn) parseOptions(data []byte) error {
	buf := readBuffer{msg: data}
	for {
		key, err := buf.getString()
		if err != nil {
			return errors.Wrap(err, "error reading option key")
		}
		if len(key) == 0 {
			return nil
		}
		value, err := buf.getString()
		if err != nil {
			return errors.Wrap(err, "error reading option value")
		}
		c.opts[key] = value
	}
}

var statusParams = [][2]string{
	{"server_version", "13.0"},
	{"client_encoding", "UTF8"},
	{"DateStyle", "ISO"},
	{"integer_datetimes", "on"},
}

func (c *v3Conn) serve(ctx context.Context) error {
	// No auth flow: trust every startup message.
	c.writeBuf.initMsg(serverMsgAuth)
	c.writeBuf.putInt32(authOK)
	if err := c.writeBuf.finishMsg(c.wr); err != nil {
		return err
	}
	for _, param := range statusParams {
		c.writeBuf.initMsg(serverMsgParameterStatus)
		c.writeBuf.writeString(param[0])
		c.writeBuf.writeString(param[1])
		if err := c.writeBuf.finishMsg(c.wr); err != nil {
			return err
		}
	}
	// Query cancellation is not supported; the key data only has to be
	// unique enough for clients that insist on echoing it back.
	sessionID := c.session.ID
	c.writeBuf.initMsg(serverMsgBackendKeyData)
	c.writeBuf.putInt32(int32(binary.BigEndian.Uint32(sessionID[0:4])))
	c.writeBuf.putInt32(int32(binary.BigEndian.Uint32(sessionID[4:8])))
	if err := c.writeBuf.finishMsg(c.wr); err != nil {
		return err
	}

	sendReady := true
	for {
		if sendReady {
			c.writeBuf.initMsg(serverMsgReady)
			// No transaction support: always idle.
			c.writeBuf.WriteByte('I')
			if err := c.writeBuf.finishMsg(c.wr); err != nil {
				return err
			}
			if err := c.wr.Flush(); err != nil {
				return err
			}
			sendReady = false
		}
		typ, err := c.readBuf.readTypedMsg(c.rd)
		if err != nil {
			return err
		}
		if log.V() {
			log.Verbosef("session %s: message %q", c.session.ID, byte(typ))
		}
		// A latched session discards extended messages until Sync.
		if c.session.InError() {
			switch typ {
			case clientMsgParse, clientMsgBind, clientMsgDescribe,
				clientMsgExecute, clientMsgClose, clientMsgFlush:
				continue
			}
		}
		switch typ {
		case clientMsgSimpleQuery:
			err = c.handleSimpleQuery(ctx, &c.readBuf)
			sendReady = true

		case clientMsgParse:
			err = c.handleParse(&c.readBuf)

		case clientMsgBind:
			err = c.handleBind(&c.readBuf)

		case clientMsgDescribe:
			err = c.handleDescribe(&c.readBuf)

		case clientMsgExecute:
			err = c.handleExecute(ctx, &c.readBuf)

		case clientMsgClose:
			err = c.handleClose(&c.readBuf)

		case clientMsgFlush:
			err = c.wr.Flush()

		case clientMsgSync:
			c.session.Sync()
			sendReady = true

		case clientMsgTerminate:
			return nil

		default:
			return c.sendInternalError(errors.Newf("unrecognized client message type %q", byte(typ)))
		}
		if err != nil {
			return err
		}
	}
}

func (c *v3Conn) handleSimpleQuery(ctx context.Context, buf *readBuffer) error {
	query, err := buf.getString()
	if err != nil {
		return err
	}
	results := c.executor.ExecuteStatements(ctx, c.session, query)
	if len(results) == 0 {
		c.writeBuf.initMsg(serverMsgEmptyQuery)
		return c.writeBuf.finishMsg(c.wr)
	}
	for _, res := range results {
		if res.Err != nil {
			if err := c.sendError(res.Err); err != nil {
				return err
			}
			// Later statements of the batch were not executed.
			break
		}
		if res.Type == parser.Rows {
			if err := c.sendRowDescription(res.Columns); err != nil {
				return err
			}
			if err := c.sendDataRows(res.Rows); err != nil {
				return err
			}
		}
		if err := c.sendCommandComplete(res.CommandTag()); err != nil {
			return err
		}
	}
	return nil
}

func (c *v3Conn) handleParse(buf *readBuffer) error {
	name, err := buf.getString()
	if err != nil {
		return err
	}
	query, err := buf.getString()
	if err != nil {
		return err
	}
	numTypes, err := buf.getInt16()
	if err != nil {
		return err
	}
	hints := make([]parser.ColumnType, numTypes)
	for i := range hints {
		typOID, err := buf.getInt32()
		if err != nil {
			return err
		}
		hints[i] = hintForOID(oid.Oid(typOID))
	}
	if err := c.executor.Parse(c.session, name, query, hints); err != nil {
		return c.sendExtendedError(err)
	}
	c.writeBuf.initMsg(serverMsgParseComplete)
	return c.writeBuf.finishMsg(c.wr)
}

func (c *v3Conn) handleBind(buf *readBuffer) error {
	portalName, err := buf.getString()
	if err != nil {
		return err
	}
	stmtName, err := buf.getString()
	if err != nil {
		return err
	}
	paramFormats, err := c.readFormatCodes(buf)
	if err != nil {
		return err
	}
	numArgs, err := buf.getInt16()
	if err != nil {
		return err
	}
	args := make([]*string, numArgs)
	for i := range args {
		argLen, err := buf.getInt32()
		if err != nil {
			return err
		}
		if argLen == -1 {
			continue // NULL
		}
		v, err := buf.getBytes(int(argLen))
		if err != nil {
			return err
		}
		s := string(v)
		args[i] = &s
	}
	resultFormats, err := c.readFormatCodes(buf)
	if err != nil {
		return err
	}
	for _, f := range append(paramFormats, resultFormats...) {
		if f == formatBinary {
			return c.sendExtendedError(errBinaryFormat)
		}
	}
	if err := c.executor.Bind(c.session, portalName, stmtName, args); err != nil {
		return c.sendExtendedError(err)
	}
	c.writeBuf.initMsg(serverMsgBindComplete)
	return c.writeBuf.finishMsg(c.wr)
}

func (c *v3Conn) readFormatCodes(buf *readBuffer) ([]int16, error) {
	n, err := buf.getInt16()
	if err != nil {
		return nil, err
	}
	codes := make([]int16, n)
	for i := range codes {
		if codes[i], err = buf.getInt16(); err != nil {
			return nil, err
		}
	}
	return codes, nil
}

func (c *v3Conn) handleDescribe(buf *readBuffer) error {
	kind, err := buf.getByte()
	if err != nil {
		return err
	}
	name, err := buf.getString()
	if err != nil {
		return err
	}
	switch kind {
	case 'S':
		ps, err := c.session.LookupStatement(name)
		if err != nil {
			return c.sendExtendedError(err)
		}
		paramTypes := ps.ParamTypes()
		c.writeBuf.initMsg(serverMsgParameterDesc)
		c.writeBuf.putInt16(int16(len(paramTypes)))
		for _, typ := range paramTypes {
			c.writeBuf.putInt32(int32(typeForColumn(typ).oid))
		}
		if err := c.writeBuf.finishMsg(c.wr); err != nil {
			return err
		}
		return c.sendStatementDescription(ps.Columns())

	case 'P':
		portal, err := c.session.LookupPortal(name)
		if err != nil {
			return c.sendExtendedError(err)
		}
		return c.sendStatementDescription(portal.Stmt.Columns())
	}
	return c.sendExtendedError(errors.Newf("invalid DESCRIBE message subtype %q", kind))
}

func (c *v3Conn) sendStatementDescription(columns []sql.ResultColumn) error {
	if columns == nil {
		c.writeBuf.initMsg(serverMsgNoData)
		return c.writeBuf.finishMsg(c.wr)
	}
	return c.sendRowDescription(columns)
}

func (c *v3Conn) handleExecute(ctx context.Context, buf *readBuffer) error {
	name, err := buf.getString()
	if err != nil {
		return err
	}
	maxRows, err := buf.getInt32()
	if err != nil {
		return err
	}
	res := c.executor.ExecutePortal(ctx, c.session, name, int(maxRows))
	if res.Err != nil {
		return c.sendExtendedError(res.Err)
	}
	if res.Tag == "" {
		c.writeBuf.initMsg(serverMsgEmptyQuery)
		return c.writeBuf.finishMsg(c.wr)
	}
	if res.Type == parser.Rows {
		// RowDescription is only sent in response to Describe.
		if err := c.sendDataRows(res.Rows); err != nil {
			return err
		}
		if res.Suspended {
			c.writeBuf.initMsg(serverMsgPortalSuspended)
			return c.writeBuf.finishMsg(c.wr)
		}
	}
	return c.sendCommandComplete(res.CommandTag())
}

func (c *v3Conn) handleClose(buf *readBuffer) error {
	kind, err := buf.getByte()
	if err != nil {
		return err
	}
	name, err := buf.getString()
	if err != nil {
		return err
	}
	switch kind {
	case 'S':
		c.session.CloseStatement(name)
	case 'P':
		c.session.ClosePortal(name)
	default:
		return c.sendExtendedError(errors.Newf("invalid CLOSE message subtype %q", kind))
	}
	c.writeBuf.initMsg(serverMsgCloseComplete)
	return c.writeBuf.finishMsg(c.wr)
}

func (c *v3Conn) sendCommandComplete(tag string) error {
	c.writeBuf.initMsg(serverMsgCommandComplete)
	c.writeBuf.writeString(tag)
	return c.writeBuf.finishMsg(c.wr)
}

func (c *v3Conn) sendRowDescription(columns []sql.ResultColumn) error {
	c.writeBuf.initMsg(serverMsgRowDescription)
	c.writeBuf.putInt16(int16(len(columns)))
	for _, column := range columns {
		typ := typeForColumn(column.Typ)
		c.writeBuf.writeString(column.Name)
		c.writeBuf.putInt32(0) // table OID
		c.writeBuf.putInt16(0) // column attribute id
		c.writeBuf.putInt32(int32(typ.oid))
		c.writeBuf.putInt16(typ.size)
		c.writeBuf.putInt32(-1) // type modifier
		c.writeBuf.putInt16(formatText)
	}
	return c.writeBuf.finishMsg(c.wr)
}

func (c *v3Conn) sendDataRows(rows []parser.DTuple) error {
	for _, row := range rows {
		c.writeBuf.initMsg(serverMsgDataRow)
		c.writeBuf.putInt16(int16(len(row)))
		for _, v := range row {
			c.writeBuf.writeDatum(v)
		}
		if err := c.writeBuf.finishMsg(c.wr); err != nil {
			return err
		}
	}
	return nil
}

var errBinaryFormat = sql.NewError(sql.CodeFeatureNotSupportedError,
	"only the text format is supported")

// sendExtendedError reports an extended-protocol failure and latches
// the session until Sync.
func (c *v3Conn) sendExtendedError(err error) error {
	c.session.SetInError()
	return c.sendError(err)
}

func (c *v3Conn) sendInternalError(err error) error {
	return c.sendError(err)
}

// sendError writes an ErrorResponse carrying the error's stable code,
// or the internal-error code for anything uncoded.
func (c *v3Conn) sendError(err error) error {
	code := sql.CodeInternalError
	var coded sql.ErrorWithPGCode
	if errors.As(err, &coded) {
		code = coded.Code()
	}
	if code == sql.CodeInternalError {
		log.Errorf("session %s: internal error: %+v", c.session.ID, err)
	}
	c.writeBuf.initMsg(serverMsgErrorResponse)
	c.writeBuf.WriteByte('S')
	c.writeBuf.writeString("ERROR")
	c.writeBuf.WriteByte('C')
	c.writeBuf.writeString(code)
	c.writeBuf.WriteByte('M')
	c.writeBuf.writeString(err.Error())
	c.writeBuf.WriteByte(0)
	if err := c.writeBuf.finishMsg(c.wr); err != nil {
		return err
	}
	return c.wr.Flush()
}
