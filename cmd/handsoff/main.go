// Command handsoff watches the webcam and warns when you touch your face.
package main

func main() {
	Execute()
}
