package parser

import (
	"testing"
	"time"

	"github.com/lchiayu/cardfeed/pkg/api"
)

func TestCathayConsumptionParse(t *testing.T) {
	p := NewCathayConsumption(taipei)
	msg := &api.Message{
		ID: "digest-1",
		Plain: "國泰世華銀行 消費彙整通知\n" +
			"\n" +
			"正卡 1234 2024/03/05 13:22 TW\n" +
			"NT$1,250 星巴克 餐飲\n" +
			"NT$300 超商\n",
	}

	candidates := p.Parse(msg)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	wantTime := time.Date(2024, 3, 5, 13, 22, 0, 0, taipei)
	for i, c := range candidates {
		if c.Bank != BankCathay {
			t.Errorf("candidate %d bank: got %q, want %q", i, c.Bank, BankCathay)
		}
		if c.Last4 != "1234" {
			t.Errorf("candidate %d last4: got %q, want %q", i, c.Last4, "1234")
		}
		if c.DateYMD != "2024/03/05" {
			t.Errorf("candidate %d date: got %q, want %q", i, c.DateYMD, "2024/03/05")
		}
		if !c.AuthTime.Equal(wantTime) {
			t.Errorf("candidate %d auth time: got %v, want %v", i, c.AuthTime, wantTime)
		}
		if c.MessageID != "digest-1" {
			t.Errorf("candidate %d message id: got %q", i, c.MessageID)
		}
	}

	if *candidates[0].Amount != 1250 || candidates[0].Merchant != "星巴克" || candidates[0].Category != "餐飲" {
		t.Errorf("first candidate: got amount=%v merchant=%q category=%q",
			*candidates[0].Amount, candidates[0].Merchant, candidates[0].Category)
	}
	// Single remaining token is the merchant, category stays empty.
	if *candidates[1].Amount != 300 || candidates[1].Merchant != "超商" || candidates[1].Category != "" {
		t.Errorf("second candidate: got amount=%v merchant=%q category=%q",
			*candidates[1].Amount, candidates[1].Merchant, candidates[1].Category)
	}
}

func TestCathayConsumptionContextOverwrite(t *testing.T) {
	p := NewCathayConsumption(taipei)
	msg := &api.Message{
		ID: "digest-2",
		Plain: "正卡 1234 2024/03/05 13:22 TW\n" +
			"NT$100 甲店\n" +
			"附卡 9999 2024/03/06 08:00 JP\n" +
			"NT$200 乙店\n",
	}

	candidates := p.Parse(msg)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	// The first candidate keeps the context it was emitted under even
	// though a later card line replaced it.
	if candidates[0].Last4 != "1234" || candidates[0].DateYMD != "2024/03/05" {
		t.Errorf("first candidate context: got last4=%q date=%q",
			candidates[0].Last4, candidates[0].DateYMD)
	}
	if candidates[1].Last4 != "9999" || candidates[1].DateYMD != "2024/03/06" {
		t.Errorf("second candidate context: got last4=%q date=%q",
			candidates[1].Last4, candidates[1].DateYMD)
	}
}

func TestCathayConsumptionTopLast4Fallback(t *testing.T) {
	p := NewCathayConsumption(taipei)
	msg := &api.Message{
		ID: "digest-3",
		Plain: "卡號後4碼：5678\n" +
			"正卡 2024/03/05 13:22 TW\n" +
			"NT$100 甲店\n",
	}

	candidates := p.Parse(msg)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Last4 != "5678" {
		t.Errorf("last4 fallback: got %q, want %q", candidates[0].Last4, "5678")
	}
}

func TestCathayConsumptionFullWidthSpaces(t *testing.T) {
	p := NewCathayConsumption(taipei)
	msg := &api.Message{
		ID:    "digest-4",
		Plain: "正卡　1234　2024/03/05　13:22　TW\nNT$50　夜市 小吃\n",
	}

	candidates := p.Parse(msg)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Merchant != "夜市" || candidates[0].Category != "小吃" {
		t.Errorf("got merchant=%q category=%q", candidates[0].Merchant, candidates[0].Category)
	}
}

func TestCathayConsumptionAmountBeforeContext(t *testing.T) {
	p := NewCathayConsumption(taipei)
	// An amount line with no preceding card line and no top-level card
	// number has no usable date, so nothing is emitted for it.
	msg := &api.Message{
		ID:    "digest-5",
		Plain: "NT$100 甲店\n正卡 1234 2024/03/05 13:22 TW\nNT$200 乙店\n",
	}

	candidates := p.Parse(msg)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if *candidates[0].Amount != 200 {
		t.Errorf("amount: got %v, want 200", *candidates[0].Amount)
	}
}
