package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type entry struct {
	Name     string  `json:"name"`
	FileLink string  `json:"fileLink"`
	Price    float64 `json:"price"`
}

// generateSampleCatalog creates a sample product catalog file for local
// development. The entries mirror the shapes seen in production: drive
// share links that get rewritten at redemption, and plain HTTPS links
// that pass through untouched.
func main() {
	dataDir := "data"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	entries := []entry{
		{
			Name:     "PhotoStudio Pro",
			FileLink: "https://drive.google.com/file/d/1AbCdEfGhIjKlMnOpQrStUvWxYz/view?usp=sharing",
			Price:    499,
		},
		{
			Name:     "Audio Mixer Deluxe",
			FileLink: "https://drive.google.com/file/d/2ZyXwVuTsRqPoNmLkJiHgFeDcBa/view?usp=drive_link",
			Price:    299,
		},
		{
			Name:     "Video Cutter",
			FileLink: "https://downloads.example.com/video-cutter-v3.zip",
			Price:    199,
		},
		{
			Name:     "PDF Toolkit",
			FileLink: "https://downloads.example.com/pdf-toolkit.zip",
			Price:    149,
		},
		{
			// No link yet: approvals for this product need an override
			Name:     "Font Bundle 2025",
			FileLink: "",
			Price:    99,
		},
	}

	filePath := filepath.Join(dataDir, "catalog.json")

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal catalog: %v", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.Fatalf("Failed to write %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d entries\n", filePath, len(entries))
	fmt.Println("\nPoint the server at it with:")
	fmt.Println("  CATALOG_PATH=data/catalog.json")
}
