package helpers

import (
	"fmt"
	"image/color"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdp/qrterminal/v3"
	"github.com/muesli/gamut"
)

// ShortenAddr shortens an Ethereum address for display
func ShortenAddr(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// ShortenHash shortens a transaction hash for display
func ShortenHash(h common.Hash) string {
	s := h.Hex()
	return s[:10] + "…" + s[len(s)-8:]
}

// FormatAmount formats a base-unit amount with the currency's decimals.
// A nil amount renders as unknown.
func FormatAmount(amount *big.Int, decimals uint8, symbol string) string {
	if amount == nil {
		return "— " + symbol
	}
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	v := new(big.Float).Quo(new(big.Float).SetInt(amount), divisor)
	return v.Text('f', 4) + " " + symbol
}

// UpdatedAt formats an on-chain timestamp, "—" when unset.
func UpdatedAt(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// PaymentURI is the EIP-681 URI for sending to addr on chainID.
func PaymentURI(addr common.Address, chainID uint64) string {
	if chainID == 0 {
		return "ethereum:" + addr.Hex()
	}
	return fmt.Sprintf("ethereum:%s@%d", addr.Hex(), chainID)
}

// QRCode renders text as a half-block terminal QR code.
func QRCode(text string) string {
	var b strings.Builder
	qrterminal.GenerateWithConfig(text, qrterminal.Config{
		Level:          qrterminal.L,
		Writer:         &b,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		QuietZone:      1,
	})
	return strings.TrimRight(b.String(), "\n")
}

// FadeString creates a gradient colored string
func FadeString(s string, firstColor string, lastColor string) string {
	n := len([]rune(s))
	if n == 0 {
		return ""
	}
	blends := gamut.Blends(lipgloss.Color(firstColor), lipgloss.Color(lastColor), n)
	return rainbow(lipgloss.NewStyle(), s, blends)
}

func rainbow(baseStyle lipgloss.Style, str string, colors []color.Color) string {
	var b strings.Builder
	i := 0
	for _, c := range str {
		col, _ := colorful.MakeColor(colors[i%len(colors)])
		b.WriteString(baseStyle.Foreground(lipgloss.Color(col.Hex())).Render(string(c)))
		i++
	}
	return b.String()
}

// Max returns the maximum of two integers
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Min returns the minimum of two integers
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
