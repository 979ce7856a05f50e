// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package connstream reassembles raw TCP segments into two directional byte
// streams per connection and feeds each one into a reassembly.Buffer for
// the decoder to frame. It knows nothing about the schema-driven wire
// format above it; that separation is what lets the same stream plumbing
// serve an arbitrary declarative protocol.
package connstream

import (
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/schemawire/common/socket"
	"github.com/packetd/schemawire/reassembly"
)

func newError(format string, args ...any) error {
	format = "connstream: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrSocketNotMatch socket 无法正确匹配
	ErrSocketNotMatch = newError("socket not match")

	// ErrNotConfirm stream 未能正确创建
	ErrNotConfirm = newError("stream not confirm")

	// ErrClosed stream 已经处于 Close 状态
	ErrClosed = newError("closed")
)

// Stats Layer4 的统计数据
type Stats struct {
	Packets uint64
	Bytes   uint64
}

// DecodeFunc 在每次 Stream 写入后被调用 用以驱动解码循环
//
// 实现方只应从 buf 中 peek/consume 完整帧 不应保留 buf 本身之外的引用
type DecodeFunc func(buf *reassembly.Buffer)

// Stream 代表了 Layer4 通信的 1 条带方向的数据流
//
// 程序并无真实持有 `链接` 以及 FD 仅是通过网卡数据分析
// 并构造出虚拟的字节流
//
// 因此对于单个 Connection 应该有 2 条 Stream
//
// 单个 Stream 的数据读写应该是串行的 `不允许也不应该成为并发操作`
type Stream interface {
	// SocketTuple 返回 Stream socket.Tuple 标识
	SocketTuple() socket.Tuple

	// ActiveAt 返回链接最后活跃时间
	ActiveAt() time.Time

	// IsClosed 返回 Stream 是否已经处于结束态
	//
	// 依赖 FIN Flags 来判断
	IsClosed() bool

	// Stats 返回 Stream 打点数据
	Stats() Stats

	// Write 执行 segment 写入操作 并在写入后调用 decodeFunc 驱动解码循环
	//
	// Write 没有实现完整的 Layer4 协议栈 无法保证数据的完整性
	// 如果假定发送方的传包顺序 pkt1 > pkt2 > pkt3
	// 而接收方收到的顺序为 pkt1 > pkt3 > pkt2 则 pkt2 就会被丢弃
	Write(seg socket.L4Packet, decodeFunc DecodeFunc) error
}

// CreateStreamFunc 定义了创建 Stream 的方法
type CreateStreamFunc func(st socket.Tuple) Stream

// pipe 将两条 Stream 封装起来成一条管道
//
// l,r 并无实际顺序意义 使用两个变量来代替 Map 效率会高些
type pipe struct {
	createStream CreateStreamFunc
	l, r         Stream
}

// confirm 确认链接是否有效 遵循先左后右原则
func (p *pipe) confirm(st socket.Tuple) Stream {
	if p.l != nil && p.l.SocketTuple() == st {
		return p.l
	}
	if p.r != nil && p.r.SocketTuple() == st {
		return p.r
	}

	if p.l == nil {
		p.l = p.createStream(st)
		return p.l
	}
	if p.r == nil {
		p.r = p.createStream(st)
		return p.r
	}
	return nil
}

// isClosed 返回 pipe 所持有 Stream 是否已经关闭
func (p *pipe) isClosed() bool {
	if p.l != nil && !p.l.IsClosed() {
		return false
	}
	if p.r != nil && !p.r.IsClosed() {
		return false
	}
	return true
}

// Conn 代表着 1 条真正的 Layer4 链接 包含两个方向的 Stream
//
// 对于链接中的两条 Stream 其状态应该是一致的 即要么都可用 要么都不可用
type Conn struct {
	pipe *pipe
	l, r socket.Tuple
}

// NewConn 创建 Layer4 Connection
func NewConn(st socket.Tuple, f CreateStreamFunc) *Conn {
	return &Conn{
		pipe: &pipe{createStream: f},
		l:    st,
		r:    st.Mirror(),
	}
}

// Stream 返回 st 所关联的 Stream
func (c *Conn) Stream(st socket.Tuple) Stream {
	return c.pipe.confirm(st)
}

type TupleStats struct {
	Tuple socket.Tuple
	Stats Stats
}

// Stats 返回 Conn 统计数据
func (c *Conn) Stats() []TupleStats {
	ts := make([]TupleStats, 0, 2)
	if c.pipe.l != nil {
		ts = append(ts, TupleStats{Tuple: c.l, Stats: c.pipe.l.Stats()})
	}
	if c.pipe.r != nil {
		ts = append(ts, TupleStats{Tuple: c.r, Stats: c.pipe.r.Stats()})
	}
	return ts
}

// Write 执行 socket.L4Packet 写入操作
func (c *Conn) Write(seg socket.L4Packet, decodeFunc DecodeFunc) error {
	if c.l != seg.SocketTuple() && c.r != seg.SocketTuple() {
		return ErrSocketNotMatch
	}

	stream := c.pipe.confirm(seg.SocketTuple())
	if stream == nil {
		return ErrNotConfirm // 理论上不应出现
	}

	return stream.Write(seg, decodeFunc)
}

// IsClosed 返回 Conn 是否已经处于结束态
func (c *Conn) IsClosed() bool {
	return c.pipe.isClosed()
}

// frameWriter appends a payload into a reassembly.Buffer and drives the
// decode callback once per Write. Unlike the line-oriented protocols this
// plumbing was built for, a length-prefixed binary format needs no
// CRLF-safe chunking: every byte can be appended in one shot and the
// decoder itself is responsible for draining as many complete frames as
// are available.
type frameWriter struct {
	buf *reassembly.Buffer
}

func newFrameWriter() *frameWriter {
	return &frameWriter{buf: reassembly.New()}
}

func (fw *frameWriter) Write(payload []byte, f DecodeFunc) {
	fw.buf.Append(payload)
	if f != nil {
		f(fw.buf)
	}
}
