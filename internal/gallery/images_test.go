package gallery

import "testing"

func TestNormalizeImageURL(t *testing.T) {
	cases := map[string]string{
		"":                                "",
		"/static/uploads/a.jpg":           "/static/uploads/a.jpg",
		"uploads/b.png":                   "/static/uploads/b.png",
		"C:/Users/me/pictures/c.jpg":      "/static/uploads/c.jpg",
		"https://cdn.example.com/x/d.jpg": "/static/uploads/d.jpg",
		"data:image/jpeg;base64,/9j/4AA":  "/placeholder.svg",
		"base64,AAAA":                     "/placeholder.svg",
		"/placeholder.svg":                "/placeholder.svg",
	}
	for in, want := range cases {
		if got := NormalizeImageURL(in); got != want {
			t.Fatalf("NormalizeImageURL(%q) = %q, want %q", in, got, want)
		}
	}
}
