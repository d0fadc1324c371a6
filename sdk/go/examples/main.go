package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"AfriArt-Gallery/sdk/go/afriart"
)

// 演示：登录、浏览作品、下单并通过 M-Pesa 付款。
func main() {
	baseURL := flag.String("url", "http://localhost:5000", "gallery API base url")
	email := flag.String("email", "", "customer email")
	password := flag.String("password", "", "customer password")
	phone := flag.String("phone", "254708374149", "M-Pesa phone number")
	flag.Parse()

	client, err := afriart.NewClient(*baseURL, nil)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	artworks, err := client.ListArtworks(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("catalog has %d artworks\n", len(artworks))

	var pick *afriart.Artwork
	for i := range artworks {
		if artworks[i].Status == "available" {
			pick = &artworks[i]
			break
		}
	}
	if pick == nil || *email == "" {
		return
	}

	if _, err := client.Login(ctx, afriart.RoleUser, *email, *password); err != nil {
		log.Fatal(err)
	}
	order, err := client.OrderArtwork(ctx, pick.ID, "Nairobi", *phone)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("ordered %q (order %d, %s KES)\n", pick.Title, order.ID, order.TotalAmount)

	started, err := client.Pay(ctx, afriart.Payment{
		PhoneNumber: *phone,
		Amount:      order.TotalAmount,
		OrderType:   "artwork",
		OrderID:     order.ID,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(started.CustomerMessage)

	status, err := client.WaitForPayment(ctx, started.CheckoutRequestID, 3*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("payment %s: %s\n", status.Status, status.ResultDesc)
}
