// Package capture frames Modbus/TCP ADUs out of pcap files.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/codec/tcp"
	"github.com/aaronwong1989/gomodbus/comm/logging"
)

var log = logging.GetDefaultLogger()

// ModbusPort 标准Modbus/TCP端口
const ModbusPort = 502

type Frame struct {
	Timestamp time.Time
	Src       string
	Dst       string
	IsRequest bool
	Header    tcp.Header
	Pdu       []byte
}

func (f Frame) Function() uint8 {
	return f.Pdu[0]
}

func (f Frame) IsException() bool {
	return f.Pdu[0]&0x80 != 0
}

// Result 解析结果，Skipped 为重新同步时丢弃的字节数
type Result struct {
	Frames  []Frame
	Skipped int
	Pending int
}

// ExtractFile 读取pcap文件中端口502上的TCP载荷并分帧
func ExtractFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pcap file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Extract(f)
}

func Extract(r io.Reader) (Result, error) {
	var res Result
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return res, fmt.Errorf("read pcap header: %w", err)
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	streams := make(map[string][]byte)
	framing := tcp.Framing{}

	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read packet: %w", err)
		}
		segment, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if !ok || len(segment.Payload) == 0 {
			continue
		}
		if segment.SrcPort != ModbusPort && segment.DstPort != ModbusPort {
			continue
		}
		src, dst := endpoints(packet, segment)
		key := src + ">" + dst
		buf := append(streams[key], segment.Payload...)

		for len(buf) > 0 {
			adus, rest, err := codec.Split[tcp.Header](framing, buf)
			for _, adu := range adus {
				res.Frames = append(res.Frames, Frame{
					Timestamp: packet.Metadata().Timestamp,
					Src:       src,
					Dst:       dst,
					IsRequest: segment.DstPort == ModbusPort,
					Header:    adu.Header,
					Pdu:       append([]byte(nil), adu.Pdu...),
				})
			}
			buf = rest
			if err == nil {
				break
			}
			// 非法帧，丢弃一个字节后重新同步
			log.Debugf("[%-9s] %s resync after %v", "Capture", key, err)
			buf = buf[1:]
			res.Skipped++
		}
		if len(buf) == 0 {
			delete(streams, key)
		} else {
			streams[key] = append([]byte(nil), buf...)
		}
	}
	for _, buf := range streams {
		res.Pending += len(buf)
	}
	return res, nil
}

func endpoints(packet gopacket.Packet, segment *layers.TCP) (string, string) {
	src, dst := "?", "?"
	if network := packet.NetworkLayer(); network != nil {
		flow := network.NetworkFlow()
		src, dst = flow.Src().String(), flow.Dst().String()
	}
	return fmt.Sprintf("%s:%d", src, segment.SrcPort), fmt.Sprintf("%s:%d", dst, segment.DstPort)
}
