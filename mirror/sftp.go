package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Atronar/yt-dlp-web-api/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// uploadToSFTP uploads into creds["remoteDir"] on creds["host"].
// Optionally: port (default 22), password or privateKey (base64 or raw PEM).
func uploadToSFTP(ctx context.Context, creds map[string]string, name string, reader io.Reader) error {
	host := creds["host"]
	port := creds["port"]
	if port == "" {
		port = "22"
	}
	user := creds["user"]
	remoteDir := creds["remoteDir"]

	if host == "" || user == "" || remoteDir == "" {
		return fmt.Errorf("missing required keys: host, user, remoteDir")
	}

	auths, err := sshAuth(creds)
	if err != nil {
		return err
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auths,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(host, port)

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer sftpClient.Close()

	if err := mkdirAllSFTP(sftpClient, remoteDir); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", remoteDir, err)
	}

	remotePath := path.Join(remoteDir, name)
	f, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}

	logger.Infof("Successfully uploaded '%s' to %s", remotePath, addr)
	return nil
}

func sshAuth(creds map[string]string) ([]ssh.AuthMethod, error) {
	if privateKey := creds["privateKey"]; privateKey != "" {
		// try base64 first, fall back to raw PEM
		keyBytes, err := base64.StdEncoding.DecodeString(privateKey)
		if err != nil {
			keyBytes = []byte(privateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if password := creds["password"]; password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	return nil, fmt.Errorf("no auth method provided; set password or privateKey")
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	parts := strings.Split(dir, "/")
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}

	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if os.IsNotExist(err) {
				if err := client.Mkdir(cur); err != nil {
					return fmt.Errorf("mkdir %s: %w", cur, err)
				}
			} else {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
		}
	}
	return nil
}
