package comm

import (
	"bufio"
	"fmt"
	"os"

	"github.com/aaronwong1989/gomodbus/codec"
	"github.com/aaronwong1989/gomodbus/comm/logging"
)

var log = logging.GetDefaultLogger()

// Inbound 入站缓冲区，gnet.Conn 满足该接口
type Inbound interface {
	InboundBuffered() int
	Peek(n int) ([]byte, error)
	Discard(n int) (int, error)
}

// TakeAdu 从入站缓冲区中取出一个完整ADU。
// 数据不足时返回 codec.ErrNotEnoughData 且不消费任何字节；
// 成功时消费该ADU，返回的PDU是拷贝，可在事件循环之外使用。
func TakeAdu[H any, F codec.Framing[H]](c Inbound, f F) (codec.Adu[H], error) {
	var adu codec.Adu[H]
	n := c.InboundBuffered()
	if n == 0 {
		return adu, codec.ErrNotEnoughData
	}
	buf, err := c.Peek(n)
	if err != nil {
		return adu, fmt.Errorf("peek %d bytes: %w", n, err)
	}
	adu, err = codec.Next[H](f, buf)
	if err != nil {
		return adu, err
	}
	LogHex(logging.DebugLevel, "Adu", buf[:adu.Length])
	adu.Pdu = append([]byte(nil), adu.Pdu...)
	if _, err = c.Discard(adu.Length); err != nil {
		return adu, fmt.Errorf("discard %d bytes: %w", adu.Length, err)
	}
	return adu, nil
}

func LogHex(level logging.Level, model string, bts []byte) {
	if level < logging.LogLevel() {
		return
	}
	msg := fmt.Sprintf("[OnTraffic] Hex %s: %x", model, bts)
	if level == logging.DebugLevel {
		log.Debugf("%s", msg)
	} else if level == logging.ErrorLevel {
		log.Errorf("%s", msg)
	} else if level == logging.WarnLevel {
		log.Warnf("%s", msg)
	} else {
		log.Infof("%s", msg)
	}
}

// SavePid 在程序执行的当前目录生成pid文件
func SavePid(f string) string {
	file, err := os.OpenFile(f, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		log.Errorf("%v", err)
		return ""
	}
	pid := fmt.Sprintf("%d", os.Getpid())

	writer := bufio.NewWriter(file)
	_, _ = writer.WriteString(pid)
	defer func(file *os.File, writer *bufio.Writer) {
		_ = writer.Flush()
		_ = file.Close()
	}(file, writer)

	return pid
}
