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

package sniffer

import (
	"strconv"
	"strings"
)

// Config 描述了抓包引擎的启动参数
//
// 相较于多协议端口表的版本 这里只需要跟踪单个应用端口 所有流向该端口的
// TCP 流量都交由同一份 schema 解析
type Config struct {
	// File 指定是否从文件中加载网络包 与监听网卡选项互斥
	File string `config:"file"`

	// Ifaces 指定监听的网卡 与 tcpdump 的 -i 参数一致
	Ifaces string `config:"ifaces"`

	// Engine 指定监听引擎 目前仅支持 pcap
	Engine string `config:"engine"`

	// IPv4Only 只监听 ipv4 流量
	IPv4Only bool `config:"ipv4Only"`

	// Port 应用层监听端口 即 schema 所描述协议的服务端口
	Port uint16 `config:"port"`

	// Host 可选 限定抓包的对端地址
	Host string `config:"host"`

	// NoPromiscuous 是否关闭 promiscuous 模式
	NoPromiscuous bool `config:"noPromiscuous"`

	// BlockNum 缓冲区 block 数量
	// 当前抓包实现不读取该字段 Linux 下始终使用 defaultBlockNum（16 即 8MB 缓冲区）
	BlockNum int `config:"blockNum"`
}

// CompileBPFFilter 编译出用于筛选单一应用端口流量的 BPF 规则
func (c *Config) CompileBPFFilter() string {
	if c.Port == 0 {
		return ""
	}

	var buf strings.Builder
	buf.WriteString("(tcp")
	if c.Host != "" {
		buf.WriteString(" and host ")
		buf.WriteString(c.Host)
	}
	buf.WriteString(" and port ")
	buf.WriteString(strconv.Itoa(int(c.Port)))
	buf.WriteString(")")
	return buf.String()
}
