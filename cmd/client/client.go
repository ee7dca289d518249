// Command client is a thin HTTP CLI against the §6 surface, grounded on
// the teacher's cmd/client/client.go flag-driven CLI shape, generalized
// from the teacher's raw TCP wire protocol to JSON-over-HTTP.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
)

func main() {
	serverAddr := flag.String("server", "http://127.0.0.1:9001", "Base URL of the exchange server")
	action := flag.String("action", "submit", "Action to perform: ['submit', 'orderbook', 'balances', 'owner', 'play', 'pause', 'resume', 'reset']")

	bookID := flag.String("book", "L1_C1", "Book id (leg book like L1_C1, or contract:C1 for ownership)")
	side := flag.String("side", "bid", "Order side: 'bid' or 'ask'")
	orderType := flag.String("type", "LEG_FREIGHT", "Order type: 'LEG_FREIGHT' or 'CONTRACT_OWNERSHIP'")
	price := flag.String("price", "100.00", "Limit price")
	qty := flag.Uint64("qty", 1, "Quantity")
	trader := flag.String("trader", "", "Trader id (compulsory for 'submit')")
	contractID := flag.String("contract", "", "Contract id (required for LEG_FREIGHT orders, and for 'owner')")
	legID := flag.String("leg", "", "Leg id (required for LEG_FREIGHT orders)")

	flag.Parse()

	switch strings.ToLower(*action) {
	case "submit":
		if *trader == "" {
			fmt.Println("Error: -trader is compulsory for 'submit'.")
			flag.Usage()
			os.Exit(1)
		}
		if err := submitOrder(*serverAddr, *bookID, *side, *orderType, *price, *qty, *trader, *contractID, *legID); err != nil {
			log.Fatalf("submit failed: %v", err)
		}
	case "orderbook":
		if err := get(*serverAddr+"/orderbook/"+*bookID); err != nil {
			log.Fatalf("orderbook failed: %v", err)
		}
	case "balances":
		if err := get(*serverAddr + "/balances"); err != nil {
			log.Fatalf("balances failed: %v", err)
		}
	case "owner":
		if *contractID == "" {
			fmt.Println("Error: -contract is compulsory for 'owner'.")
			flag.Usage()
			os.Exit(1)
		}
		if err := get(*serverAddr + "/current_owner/" + *contractID); err != nil {
			log.Fatalf("owner failed: %v", err)
		}
	case "play", "pause", "resume", "reset":
		if err := post(*serverAddr+"/"+strings.ToLower(*action), nil); err != nil {
			log.Fatalf("%s failed: %v", *action, err)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}
}

func submitOrder(base, bookID, side, orderType, price string, qty uint64, trader, contractID, legID string) error {
	payload := map[string]any{
		"side":       side,
		"book_id":    bookID,
		"price":      price,
		"qty":        qty,
		"trader":     trader,
		"order_type": orderType,
	}
	if contractID != "" {
		payload["contract_id"] = contractID
	}
	if legID != "" {
		payload["leg_id"] = legID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return post(base+"/orders", bytes.NewReader(body))
}

func post(url string, body io.Reader) error {
	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func get(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Printf("%d: %s\n", resp.StatusCode, string(b))
	return nil
}
