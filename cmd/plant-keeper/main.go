package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"plant-keeper/internal/auth"
	"plant-keeper/internal/blob"
	"plant-keeper/internal/catalog"
	"plant-keeper/internal/config"
	"plant-keeper/internal/database"
	"plant-keeper/internal/describe"
	"plant-keeper/internal/image"
	"plant-keeper/internal/plantapi"
	"plant-keeper/internal/weather"
	"plant-keeper/internal/workflow"

	"github.com/joho/godotenv"
)

// noCamera stands in for the platform capture device, which the CLI does not
// have. Images come in through the gallery path (a file argument).
type noCamera struct{}

func (noCamera) Capture(ctx context.Context, target image.Handle) error {
	return errors.New("no capture device available")
}

// fileGallery treats a CLI file argument as the user's gallery selection.
type fileGallery struct {
	path string
}

func (g fileGallery) Pick(ctx context.Context) (*image.Handle, error) {
	if g.path == "" {
		return nil, nil // no selection
	}
	return &image.Handle{URI: g.path}, nil
}

func main() {
	ctx := context.Background()

	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	authService := auth.NewService(db.SQL, []byte(cfg.AuthSecret), cfg.SessionPath)
	plantClient := plantapi.NewClient(cfg)
	plantRepo := catalog.NewRepository(db.SQL, authService)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "signup":
		email, password := credentialArgs("signup")
		if err := authService.SignUp(ctx, email, password); err != nil {
			log.Fatalf("Sign-up failed: %v", err)
		}
		fmt.Println("Account created. Sign in with 'plant-keeper signin'.")

	case "signin":
		email, password := credentialArgs("signin")
		if _, err := authService.SignIn(ctx, email, password); err != nil {
			log.Fatalf("Sign-in failed: %v", err)
		}
		fmt.Println("Signed in.")

	case "signout":
		if err := authService.SignOut(); err != nil {
			log.Fatalf("Sign-out failed: %v", err)
		}
		fmt.Println("Signed out.")

	case "identify":
		path := singlePathArg("identify")
		name, err := plantClient.Identify(ctx, path)
		if err != nil {
			log.Fatalf("Identification failed: %v", err)
		}
		fmt.Println(name)

	case "diagnose":
		path := singlePathArg("diagnose")
		diagnosis, err := plantClient.Diagnose(ctx, path)
		if err != nil {
			log.Fatalf("Diagnosis failed: %v", err)
		}
		printDiagnosis(diagnosis)

	case "add":
		runAdd(ctx, cfg, plantClient, authService, plantRepo)

	case "list":
		plants, err := plantRepo.List(ctx)
		if err != nil {
			log.Fatalf("Failed to list plants: %v", err)
		}
		if len(plants) == 0 {
			fmt.Println("No plants in your collection yet.")
			return
		}
		for _, p := range plants {
			fmt.Printf("%s  %s\n    %s\n    %s\n", p.ID, p.Name, p.Description, p.ImageURL)
		}

	case "delete":
		if len(os.Args) < 3 {
			log.Fatal("usage: plant-keeper delete <plant-id>")
		}
		if err := plantRepo.Delete(ctx, os.Args[2]); err != nil {
			log.Fatalf("Failed to delete plant: %v", err)
		}
		fmt.Println("Plant deleted.")

	case "weather":
		location := "Tarija"
		if len(os.Args) > 2 {
			location = os.Args[2]
		}
		obs, err := weather.NewClient(cfg).Current(ctx, location)
		if err != nil {
			log.Fatalf("Failed to fetch weather: %v", err)
		}
		fmt.Printf("%s: %.1f°C, %s\n", obs.Location.Name, obs.Current.TempC, obs.Current.Condition.Text)

	default:
		printUsage()
		os.Exit(1)
	}
}

// runAdd drives the add-plant workflow: image → identify → describe → save.
func runAdd(ctx context.Context, cfg *config.Config, plantClient *plantapi.Client, authService *auth.Service, plantRepo *catalog.Repository) {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	name := addCmd.String("name", "", "Plant name (skips identification)")
	description := addCmd.String("description", "", "Plant description (skips enrichment)")
	addCmd.Parse(os.Args[2:])

	if addCmd.NArg() < 1 {
		log.Fatal("usage: plant-keeper add [options] <image-file>")
	}

	blobStore, err := blob.NewStore(cfg, authService)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	describer, err := newDescriber(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize description generator: %v", err)
	}

	acquirer := image.NewAcquirer(noCamera{}, fileGallery{path: addCmd.Arg(0)}, cfg.MediaDir, cfg.CacheDir)
	w := workflow.New(plantClient, describer, blobStore, plantRepo, acquirer)

	handle, err := acquirer.AcquireFromGallery(ctx)
	if err != nil {
		log.Fatalf("Failed to acquire image: %v", err)
	}
	if handle == nil {
		log.Fatal("No image selected.")
	}
	if err := w.SetImage(*handle); err != nil {
		log.Fatalf("Failed to set image: %v", err)
	}

	if *name == "" {
		// Identification failure is not fatal; the -name flag still works.
		if err := w.Identify(ctx); err != nil {
			log.Printf("Identification failed: %v", err)
		}
	}
	if *name != "" {
		w.SetName(*name)
	}
	if *description != "" {
		w.SetDescription(*description)
	}

	state := w.State()
	if state.Name == "" {
		log.Fatal("Could not identify the plant; pass -name to set it manually.")
	}

	if err := w.Submit(ctx); err != nil {
		log.Fatalf("Failed to save plant: %v", err)
	}
	fmt.Printf("Saved %q to your collection.\n", state.Name)
}

// newDescriber picks the enrichment backend: Gemini when a key is configured,
// otherwise the plant-description HTTP endpoint.
func newDescriber(ctx context.Context, cfg *config.Config) (describe.Generator, error) {
	if cfg.GeminiAPIKey != "" {
		return describe.NewGeminiGenerator(ctx, cfg)
	}
	return describe.NewHTTPGenerator(cfg), nil
}

func credentialArgs(command string) (string, string) {
	cmd := flag.NewFlagSet(command, flag.ExitOnError)
	email := cmd.String("email", "", "Account email")
	password := cmd.String("password", "", "Account password")
	cmd.Parse(os.Args[2:])
	if *email == "" || *password == "" {
		log.Fatalf("usage: plant-keeper %s -email <email> -password <password>", command)
	}
	return *email, *password
}

func singlePathArg(command string) string {
	if len(os.Args) < 3 {
		log.Fatalf("usage: plant-keeper %s <image-file>", command)
	}
	return os.Args[2]
}

func printDiagnosis(d *plantapi.Diagnosis) {
	if !d.IsPlant.Confirmed {
		fmt.Printf("This does not look like a plant (%.1f%% confidence).\n", d.IsPlant.Probability)
		return
	}
	verdict := "healthy"
	if !d.Health.Healthy {
		verdict = "unhealthy"
	}
	fmt.Printf("Plant detected (%.1f%%), %s (%.1f%%).\n",
		d.IsPlant.Probability, verdict, d.Health.Probability)
	if len(d.Diseases) > 0 {
		fmt.Println("Possible issues:")
		for _, disease := range d.Diseases {
			fmt.Printf("  - %s (%.1f%%)\n", disease.Name, disease.Probability)
		}
	}
}

func printUsage() {
	fmt.Println(`Usage: plant-keeper <command> [options]

Commands:
  signup    -email -password   Create an account
  signin    -email -password   Sign in and start a session
  signout                      End the current session
  identify  <image-file>       Identify a plant from a photo
  diagnose  <image-file>       Check a plant's health from a photo
  add       [options] <image>  Identify and save a plant to your collection
  list                         List your saved plants
  delete    <plant-id>         Remove a plant from your collection
  weather   [location]         Show current conditions (default: Tarija)`)
}
