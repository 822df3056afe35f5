package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/config"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/files"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/peer"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/session"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/transfer"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/ui"
)

var (
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagRoom     string
	flagName     string
)

var sendCmd = &cobra.Command{
	Use:     "send <file>",
	Aliases: []string{"s"},
	Short:   "Send a file to a peer",
	Long: `Send a file directly to a peer over a WebRTC data channel.

Examples:
  opendrop send file.pdf
  opendrop send --room 482913 file.pdf
  opendrop send --server drop.example.com:3000 file.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendFile(args[0])
	},
}

type peerArrival struct {
	id   string
	name string
}

func sendFile(path string) error {
	sp := ui.NewSimpleSpinner("Validating file...")
	sp.Start()
	info, err := files.Validate(path)
	if err != nil {
		sp.Error("File validation failed")
		return err
	}
	sp.Stop()

	fmt.Println()
	ui.RenderFileTable([]ui.FileRow{{Index: 1, Name: info.Name, Size: info.Size, Type: info.Type}})

	cfg, err := LoadConfig(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return err
	}

	sess := session.New(cfg, session.DirSink{})

	peerReady := make(chan peerArrival, 4)
	transferDone := make(chan error, 1)

	var mu sync.Mutex
	var live *ui.LiveProgress
	peerStates := make(map[string]string)

	sess.OnPeerUsable = func(id, name string) {
		select {
		case peerReady <- peerArrival{id: id, name: name}:
		default:
		}
	}
	sess.OnPeerState = func(id string, state peer.LinkState) {
		mu.Lock()
		peerStates[id] = state.String()
		mu.Unlock()
	}
	sess.OnProgress = func(remoteID string, ts *transfer.Session) {
		mu.Lock()
		if live != nil {
			live.Update(ts.Bytes())
		}
		mu.Unlock()
	}
	sess.OnDone = func(remoteID string, ts *transfer.Session, err error) {
		select {
		case transferDone <- err:
		default:
		}
	}

	fmt.Println()
	sp = ui.NewConnectionSpinner("Connecting to server...")
	sp.Start()
	if err := sess.Connect(); err != nil {
		sp.Error("Could not reach the signaling server")
		return err
	}
	defer sess.Leave()
	sp.Success("Connected to signaling server")

	code := flagRoom
	if code == "" {
		code = protocol.GenerateRoomCode()
	}
	if err := sess.Create(code, flagName); err != nil {
		return err
	}
	go sess.Run()

	ui.RenderRoomInfo(sess.RoomCode, sess.RoomLink())

	fmt.Println()
	sp = ui.NewWaitingSpinner("Waiting for a peer to join...")
	sp.Start()
	joined := <-peerReady
	sp.Success(fmt.Sprintf("%s joined the room", joined.name))

	mu.Lock()
	status := peerStates[joined.id]
	mu.Unlock()
	if status == "" {
		status = "connected"
	}
	ui.RenderPeerTable([]ui.PeerRow{{Name: joined.name, ID: joined.id, Status: status}})

	start := time.Now()
	if err := sess.SendFile(joined.id, info); err != nil {
		return err
	}

	lp := ui.NewLiveProgress(ui.ModeSend, info.Name, info.Size)
	lp.OnCancel = func() {
		if engine, err := sess.Engine(joined.id); err == nil {
			engine.Cancel()
		}
	}
	mu.Lock()
	live = lp
	mu.Unlock()
	lp.Start()

	err = <-transferDone
	if err != nil {
		lp.MarkFailed(err.Error())
		lp.Stop()
		return err
	}
	lp.MarkComplete()
	lp.Stop()

	elapsed := time.Since(start).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(info.Size) / elapsed
	}

	fmt.Println()
	ui.RenderTransferSummary("📊 Transfer Summary", ui.TransferSummary{
		Status:    "✅ Complete",
		File:      info.Name,
		TotalSize: ui.FormatBytes(info.Size),
		Duration:  fmt.Sprintf("%.2f seconds", elapsed),
		Speed:     ui.FormatSpeed(speed),
	})

	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&flagServer, "server", "", "Signaling server host:port")
	sendCmd.Flags().StringVarP(&flagRoom, "room", "c", "", "Use a specific six-digit room code")
	sendCmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name shown to peers")
	sendCmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	sendCmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	sendCmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	sendCmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	sendCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}
