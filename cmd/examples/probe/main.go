// Probe prints the UID and first block of the card on the only attached
// reader.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/malivvan/pcscctl/config"
	"github.com/malivvan/pcscctl/scard"
	"github.com/malivvan/pcscctl/value"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("\nerror: %s\n\n", err)
		os.Exit(1)
	}
}

func run() error {
	readers, err := scard.ListReaders(config.DefaultMaxDev)
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		fmt.Println("no reader attached")
		return nil
	}
	if len(readers) > 1 {
		// to do: handle multiple readers choices
		return fmt.Errorf("multiple readers not supported")
	}
	s, err := scard.Open(readers[0], scard.Options{})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	fmt.Println("please present a card")
	if err := s.WaitCard(ctx, 30*time.Second); err != nil {
		return err
	}
	uid, err := s.CardUID()
	if err != nil {
		return err
	}
	fmt.Printf("reader=%s atr=%s uid=%X\n", s.Reader(), s.ATR(), uid)

	buf := make([]byte, scard.BlockSize+config.StatusLen)
	n, err := s.ReadBlock(ctx, "probe", 0, 0, buf, nil)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(value.Tokens(buf[:n-config.StatusLen]), " "))
	return nil
}
