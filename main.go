package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nimbusdrive/nimbus-go/api"
	"github.com/nimbusdrive/nimbus-go/api/notifyhub"
	"github.com/nimbusdrive/nimbus-go/recycle"
	"github.com/nimbusdrive/nimbus-go/session"
	"github.com/nimbusdrive/nimbus-go/tool"
	"github.com/nimbusdrive/nimbus-go/transfer"
	"github.com/nimbusdrive/nimbus-go/types"
)

func main() {
	cfg := tool.SetFlags()
	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.InitLogger()

	switch strings.ToLower(cfg.Log) {
	case "", "dev":
		tool.DefaultLogger.SetLevel(log.DebugLevel)
	case "prod":
		tool.DefaultLogger.SetLevel(log.InfoLevel)
	case "none":
		tool.DefaultLogger.SetLevel(log.FatalLevel)
	default:
		tool.DefaultLogger.Warnf("Unknown log mode %q, using debug level", cfg.Log)
		tool.DefaultLogger.SetLevel(log.DebugLevel)
	}

	if cfg.UseServerURL != "" {
		appCfg.ServerURL = cfg.UseServerURL
	}

	hub := notifyhub.New()

	if cfg.UseDevServer {
		devServer := api.NewServer(appCfg.DevPort, appCfg.MaxUploadMB, hub)
		go func() {
			if err := devServer.Start(); err != nil {
				tool.DefaultLogger.Fatalf("Dev backend startup failed: %v", err)
			}
		}()
		appCfg.ServerURL = fmt.Sprintf("http://127.0.0.1:%d", appCfg.DevPort)
		// give the listener a beat before the first call
		time.Sleep(200 * time.Millisecond)
	}

	client, err := session.NewClient(session.Config{
		ServerURL:    appCfg.ServerURL,
		APIPrefix:    appCfg.APIPrefix,
		RateLimitRPS: appCfg.RateLimitRPS,
		OnSessionExpired: func() {
			tool.DefaultLogger.Error("Session expired, please sign in again")
		},
	})
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}

	ctx := context.Background()

	if cfg.UseDevServer {
		if _, err := client.Login(ctx, "dev", "dev"); err != nil {
			tool.DefaultLogger.Fatalf("Dev login failed: %v", err)
		}
	} else if user, pass := os.Getenv("NIMBUS_USER"), os.Getenv("NIMBUS_PASS"); user != "" {
		if _, err := client.Login(ctx, user, pass); err != nil {
			tool.DefaultLogger.Fatalf("Login failed: %v", err)
		}
	}

	policy := recycle.NewPolicy(recycle.PolicyConfig{
		Client:     client,
		WindowDays: appCfg.RetentionDays,
	})

	switch {
	case cfg.Status:
		rtt, err := tool.CheckReachable(appCfg.ServerURL, tool.DefaultTimeout)
		if err != nil {
			tool.DefaultLogger.Fatalf("Backend unreachable: %v", err)
		}
		tool.DefaultLogger.Infof("Backend reachable, avg rtt %s", rtt)

	case cfg.Upload != "":
		runUpload(ctx, client, hub, appCfg.MaxUploadMB, strings.Split(cfg.Upload, ","))

	case cfg.List:
		files, err := client.ListFiles(ctx)
		if err != nil {
			tool.DefaultLogger.Fatalf("%v", err)
		}
		for _, f := range files {
			fmt.Printf("%s  %-10s  %10d  %s\n", f.FileID, f.FileType, f.FileSize, f.FileName)
		}
		tool.DefaultLogger.Infof("%d files", len(files))

	case cfg.Bin:
		records, err := policy.Load(ctx)
		if err != nil {
			tool.DefaultLogger.Fatalf("%v", err)
		}
		for _, rec := range records {
			fmt.Printf("%s  %-10s  %2d day(s) left  %s\n", rec.FileID, rec.FileType, policy.DaysLeft(rec), rec.FileName)
		}
		tool.DefaultLogger.Infof("%d records in the recycle bin", len(records))

	case cfg.RestoreAll:
		runBulk(ctx, client, policy.RestoreAll, "restored")

	case cfg.EmptyBin:
		runBulk(ctx, client, policy.EmptyBin, "purged")

	case cfg.Purge != "":
		if err := client.Purge(ctx, cfg.Purge); err != nil {
			tool.DefaultLogger.Fatalf("%v", err)
		}
		tool.DefaultLogger.Infof("Permanently deleted %s", cfg.Purge)

	case cfg.Delete != "":
		if err := client.SoftDelete(ctx, cfg.Delete); err != nil {
			tool.DefaultLogger.Fatalf("%v", err)
		}
		tool.DefaultLogger.Infof("Moved %s to the recycle bin", cfg.Delete)

	case cfg.ShareQR != "":
		rec, err := client.GetFile(ctx, cfg.ShareQR)
		if err != nil {
			tool.DefaultLogger.Fatalf("%v", err)
		}
		link := appCfg.ServerURL + rec.ShareURL
		out := "share-" + rec.FileID + ".png"
		if err := tool.WriteShareQR(out, link); err != nil {
			tool.DefaultLogger.Fatalf("%v", err)
		}
		tool.DefaultLogger.Infof("Wrote %s for %s", out, link)

	default:
		tool.DefaultLogger.Info("Nothing to do; see -h for commands")
	}
}

func runUpload(ctx context.Context, client *session.Client, hub *notifyhub.Hub, maxUploadMB int64, paths []string) {
	var sources []types.FileSource
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		src, err := tool.FileSourceFromPath(path)
		if err != nil {
			tool.DefaultLogger.Errorf("%v", err)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		tool.DefaultLogger.Fatal("No readable files to upload")
	}

	queue := transfer.NewQueue(transfer.QueueConfig{
		Uploader:    client,
		Notifier:    hub,
		MaxUploadMB: maxUploadMB,
	})
	accepted, rejected := queue.Enqueue(ctx, sources)
	for _, rej := range rejected {
		fmt.Printf("rejected  %s: %s\n", rej.Name, rej.Reason)
	}
	queue.Wait()

	for _, item := range queue.Items() {
		line := fmt.Sprintf("%-9s  %s", item.Status, item.Name)
		if item.Error != "" {
			line += "  (" + item.Error + ")"
		}
		fmt.Println(line)
	}
	tool.DefaultLogger.Infof("Uploads finished: %d accepted, %d rejected, all done: %v",
		len(accepted), len(rejected), queue.AllDone())
}

func runBulk(ctx context.Context, client *session.Client, op func(context.Context, []types.DeletedRecord) (recycle.BulkResult, error), verb string) {
	records, err := client.ListBin(ctx)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	if len(records) == 0 {
		tool.DefaultLogger.Info("Recycle bin is already empty")
		return
	}
	result, err := op(ctx, records)
	if err != nil {
		for _, failure := range result.Failed {
			fmt.Printf("failed    %s: %s\n", failure.FileID, failure.Reason)
		}
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.DefaultLogger.Infof("%d record(s) %s", len(result.Succeeded), verb)
}
