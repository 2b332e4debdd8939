package firebase

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and the clients this service uses
type App struct {
	FirebaseApp *firebase.App
	Auth        *auth.Client
	Messaging   *messaging.Client
	Firestore   *firestore.Client
}

// InitFirebase initializes the Firebase application with its Auth and
// Messaging clients, and its Firestore client when withFirestore is set. An empty
// credentialsPath falls back to Application Default Credentials.
func InitFirebase(ctx context.Context, credentialsPath, projectID string, withFirestore bool) (*App, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	firebaseApp, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase messaging client: %w", err)
	}

	app := &App{FirebaseApp: firebaseApp, Auth: authClient, Messaging: messagingClient}
	if withFirestore {
		firestoreClient, err := firebaseApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting firestore client: %w", err)
		}
		app.Firestore = firestoreClient
	}

	slog.Info("firebase initialized", "firestore", withFirestore)
	return app, nil
}

// Close releases the Firestore connection
func (a *App) Close() error {
	if a.Firestore == nil {
		return nil
	}
	return a.Firestore.Close()
}
